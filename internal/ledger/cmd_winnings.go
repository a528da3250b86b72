package ledger

import (
	"context"

	"github.com/riverfelt/platform/internal/domain"
)

// PlayerAmount pairs a player with a settlement amount.
type PlayerAmount struct {
	PlayerID string `json:"playerId"`
	Amount   int64  `json:"amount"`
}

// ProcessWinningsParams settles one hand: credits for winners, debits for
// losers, all keyed to the same hand.
type ProcessWinningsParams struct {
	TableID string
	HandID  string
	Winners []PlayerAmount
	Losers  []PlayerAmount
}

// ProcessWinningsResult reports the post-settlement balances.
type ProcessWinningsResult struct {
	HandID   string           `json:"handId"`
	Balances map[string]int64 `json:"balances"`
}

// ProcessWinnings applies a hand settlement batch atomically. Every loser's
// balance is checked against their loss under the locks before anything is
// applied; one failing precondition aborts the whole batch with no side
// effects. Pot conservation is not checked here: the game engine owns it, and
// the ledger records whatever the engine presents.
func (e *Engine) ProcessWinnings(ctx context.Context, p ProcessWinningsParams) (*ProcessWinningsResult, error) {
	if err := domain.ValidateTableID(p.TableID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateHandID(p.HandID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if len(p.Winners) == 0 && len(p.Losers) == 0 {
		return nil, domain.ErrValidation("at least one winner or loser is required")
	}

	players := make([]string, 0, len(p.Winners)+len(p.Losers))
	for _, w := range p.Winners {
		if err := domain.ValidatePlayerID("winners[].playerId", w.PlayerID); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		if err := domain.ValidatePositiveAmount("winners[].amount", w.Amount); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		players = append(players, w.PlayerID)
	}
	for _, l := range p.Losers {
		if err := domain.ValidatePlayerID("losers[].playerId", l.PlayerID); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		if err := domain.ValidatePositiveAmount("losers[].amount", l.Amount); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		players = append(players, l.PlayerID)
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

	wallets := make(map[string]*domain.Wallet, len(players))
	for _, pid := range players {
		wallets[pid] = e.getOrCreateLocked(pid, now)
	}

	// Precondition pass: no loser may go negative.
	for _, l := range p.Losers {
		if w := wallets[l.PlayerID]; w.Balance < l.Amount {
			pre.restore(e.state)
			e.mu.Unlock()
			return nil, domain.ErrInsufficientFunds(l.PlayerID, w.Balance, l.Amount)
		}
	}

	entries := make([]*domain.JournalEntry, 0, len(players))
	for _, l := range p.Losers {
		w := wallets[l.PlayerID]
		w.Balance -= l.Amount
		w.LastUpdated = now
		entries = append(entries, e.appendEntryLocked(&domain.JournalEntry{
			PlayerID:    l.PlayerID,
			Kind:        domain.KindLoss,
			Amount:      -l.Amount,
			PostBalance: w.Balance,
			TableID:     p.TableID,
			HandID:      p.HandID,
		}, now))
	}
	for _, win := range p.Winners {
		w := wallets[win.PlayerID]
		w.Balance += win.Amount
		w.LastUpdated = now
		entries = append(entries, e.appendEntryLocked(&domain.JournalEntry{
			PlayerID:    win.PlayerID,
			Kind:        domain.KindWin,
			Amount:      win.Amount,
			PostBalance: w.Balance,
			TableID:     p.TableID,
			HandID:      p.HandID,
		}, now))
	}

	result := &ProcessWinningsResult{HandID: p.HandID, Balances: make(map[string]int64, len(wallets))}
	for pid, w := range wallets {
		result.Balances[pid] = w.Balance
	}
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entries...)

	e.logger.Info("hand settled",
		"table_id", p.TableID, "hand_id", p.HandID,
		"winners", len(p.Winners), "losers", len(p.Losers))
	return result, nil
}
