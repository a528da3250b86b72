package ledger

import (
	"context"
	"fmt"

	"github.com/riverfelt/platform/internal/domain"
)

// RollbackBuyInParams releases a seat's escrow without settling chips.
type RollbackBuyInParams struct {
	PlayerID string
	TableID  string
	Amount   int64
	Reason   string
}

// RollbackHandParams refunds a voided hand for a set of players.
type RollbackHandParams struct {
	TableID string
	HandID  string
	Players []PlayerRefund
	Reason  string
}

// PlayerRefund pairs a player with the amount returned for a voided hand.
type PlayerRefund struct {
	PlayerID     string `json:"playerId"`
	RefundAmount int64  `json:"refundAmount"`
}

// RollbackHandResult reports post-refund balances.
type RollbackHandResult struct {
	HandID   string           `json:"handId"`
	Balances map[string]int64 `json:"balances"`
}

// RollbackBuyIn removes the frozen entry for the seat. The balance does not
// move: the escrowed funds simply return to available. The refund entry
// records the original frozen amount; cash-out and rollback-buy-in are
// mutually exclusive consumers of a frozen entry.
func (e *Engine) RollbackBuyIn(ctx context.Context, p RollbackBuyInParams) (*domain.WalletView, error) {
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
	w.LastUpdated = now
	entry := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:    p.PlayerID,
		Kind:        domain.KindRefund,
		Amount:      frozen.Amount,
		PostBalance: w.Balance,
		TableID:     p.TableID,
		Description: fmt.Sprintf("buy-in rollback at table %s", p.TableID),
		Metadata: map[string]any{
			"reason":          p.Reason,
			"requestedAmount": p.Amount,
		},
	}, now)
	view := e.viewLocked(w)
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entry)

	e.logger.Info("buy-in rolled back",
		"player_id", p.PlayerID, "table_id", p.TableID,
		"amount", frozen.Amount, "reason", p.Reason)
	return view, nil
}

// RollbackHand credits each listed player their refund for a voided hand.
// The batch is validated up front and applied atomically.
func (e *Engine) RollbackHand(ctx context.Context, p RollbackHandParams) (*RollbackHandResult, error) {
	if err := domain.ValidateTableID(p.TableID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateHandID(p.HandID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(p.Players) == 0 {
		return nil, domain.ErrValidation("at least one player refund is required")
	}
	players := make([]string, 0, len(p.Players))
	for _, r := range p.Players {
		if err := domain.ValidatePlayerID("players[].playerId", r.PlayerID); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		if err := domain.ValidatePositiveAmount("players[].refundAmount", r.RefundAmount); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		players = append(players, r.PlayerID)
	}

	release, err := e.locks.AcquireMany(ctx, players)
	if err != nil {
		return nil, domain.ErrInternal("acquire wallet locks", err)
	}
	defer release()

	now := e.now()
	e.mu.Lock()
	e.sweepLocked(now)
	pre := e.captureLocked(false, players...)

	entries := make([]*domain.JournalEntry, 0, len(p.Players))
	result := &RollbackHandResult{HandID: p.HandID, Balances: make(map[string]int64, len(p.Players))}
	for _, r := range p.Players {
		w := e.getOrCreateLocked(r.PlayerID, now)
		w.Balance += r.RefundAmount
		w.LastUpdated = now
		entries = append(entries, e.appendEntryLocked(&domain.JournalEntry{
			PlayerID:    r.PlayerID,
			Kind:        domain.KindRefund,
			Amount:      r.RefundAmount,
			PostBalance: w.Balance,
			TableID:     p.TableID,
			HandID:      p.HandID,
			Description: fmt.Sprintf("hand %s voided", p.HandID),
			Metadata:    map[string]any{"reason": p.Reason},
		}, now))
		result.Balances[r.PlayerID] = w.Balance
	}
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entries...)

	e.logger.Info("hand rolled back",
		"table_id", p.TableID, "hand_id", p.HandID,
		"players", len(p.Players), "reason", p.Reason)
	return result, nil
}
