package ledger

import (
	"context"
	"fmt"

	"github.com/riverfelt/platform/internal/domain"
)

// BuyInParams freezes a table buy-in.
type BuyInParams struct {
	PlayerID string
	TableID  string
	Amount   int64
}

// BuyInResult mirrors the legacy flat buy-in response: chip count handed to
// the table and the player's remaining available balance.
type BuyInResult struct {
	ChipCount     int64
	WalletBalance int64
}

// BuyIn escrows the amount against the seat. The wallet balance does not
// move; the frozen sum grows, shrinking the available balance. A second
// buy-in on the same (player, table) while escrow exists is rejected.
func (e *Engine) BuyIn(ctx context.Context, p BuyInParams) (*BuyInResult, error) {
	if err := domain.ValidatePlayerID("playerId", p.PlayerID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateTableID(p.TableID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePositiveAmount("amount", p.Amount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	release, err := e.locks.Acquire(ctx, p.PlayerID)
	if err != nil {
		return nil, domain.ErrInternal("acquire wallet lock", err)
	}
	defer release()

	now := e.now()
	e.mu.Lock()
	e.sweepLocked(now)
	pre := e.captureLocked(false, p.PlayerID)

	w := e.getOrCreateLocked(p.PlayerID, now)

	if e.findFrozenLocked(p.PlayerID, p.TableID) != nil {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrConflict(fmt.Sprintf("player %s already has a buy-in at table %s", p.PlayerID, p.TableID))
	}

	row := e.dailyRowLocked(p.PlayerID, now)
	if remaining := e.cfg.DailyBuyInLimit - row.BuyIns; p.Amount > remaining {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrDailyLimit("buy-in", remaining, p.Amount)
	}

	if available := e.availableLocked(w); available < p.Amount {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrInsufficientFunds(p.PlayerID, available, p.Amount)
	}

	e.freezeLocked(p.PlayerID, p.TableID, p.Amount, domain.FreezeBuyIn, now)
	row.BuyIns += p.Amount
	w.LastUpdated = now
	entry := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:    p.PlayerID,
		Kind:        domain.KindBuyIn,
		Amount:      -p.Amount,
		PostBalance: w.Balance,
		TableID:     p.TableID,
		Description: fmt.Sprintf("buy-in at table %s", p.TableID),
	}, now)
	available := e.availableLocked(w)
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entry)

	e.logger.Info("buy-in frozen",
		"player_id", p.PlayerID, "table_id", p.TableID, "amount", p.Amount, "available", available)
	return &BuyInResult{ChipCount: p.Amount, WalletBalance: available}, nil
}
