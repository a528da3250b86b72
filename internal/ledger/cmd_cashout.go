package ledger

import (
	"context"
	"fmt"

	"github.com/riverfelt/platform/internal/domain"
)

// CashOutParams settles a seat. ChipAmount is what the player leaves the
// table with and may be zero (busted).
type CashOutParams struct {
	PlayerID   string
	TableID    string
	ChipAmount int64
}

// CashOutResult reports the settled wallet.
type CashOutResult struct {
	Wallet     *domain.Wallet `json:"wallet"`
	NetChange  int64          `json:"netChange"`
	BuyIn      int64          `json:"originalBuyIn"`
	ChipAmount int64          `json:"chipAmount"`
}

// CashOut consumes the seat's frozen entry and applies the net result of the
// session: balance += chipAmount - originalBuyIn.
func (e *Engine) CashOut(ctx context.Context, p CashOutParams) (*CashOutResult, error) {
	if err := domain.ValidatePlayerID("playerId", p.PlayerID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateTableID(p.TableID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateNonNegativeAmount("chipAmount", p.ChipAmount); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	release, err := e.locks.Acquire(ctx, p.PlayerID)
	if err != nil {
		return nil, domain.ErrInternal("acquire wallet lock", err)
	}
	defer release()

	now := e.now()
	e.mu.Lock()
	w, ok := e.state.Wallets[p.PlayerID]
	if !ok {
		e.mu.Unlock()
		return nil, domain.ErrNotFound("wallet", p.PlayerID)
	}
	if e.findFrozenLocked(p.PlayerID, p.TableID) == nil {
		e.mu.Unlock()
		return nil, domain.ErrConflict(fmt.Sprintf("no frozen buy-in for player %s at table %s", p.PlayerID, p.TableID))
	}

	e.sweepLocked(now)
	pre := e.captureLocked(false, p.PlayerID)

	frozen := e.releaseFrozenLocked(p.PlayerID, p.TableID)
	netChange := p.ChipAmount - frozen.Amount
	w.Balance += netChange
	w.LastUpdated = now
	entry := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:    p.PlayerID,
		Kind:        domain.KindCashOut,
		Amount:      p.ChipAmount,
		PostBalance: w.Balance,
		TableID:     p.TableID,
		Description: fmt.Sprintf("cash-out from table %s", p.TableID),
		Metadata: map[string]any{
			"originalBuyIn": frozen.Amount,
			"netChange":     netChange,
		},
	}, now)
	result := &CashOutResult{
		Wallet:     w.Clone(),
		NetChange:  netChange,
		BuyIn:      frozen.Amount,
		ChipAmount: p.ChipAmount,
	}
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entry)

	e.logger.Info("cash-out settled",
		"player_id", p.PlayerID, "table_id", p.TableID,
		"chip_amount", p.ChipAmount, "net_change", netChange)
	return result, nil
}
