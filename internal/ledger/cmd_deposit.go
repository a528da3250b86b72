package ledger

import (
	"context"

	"github.com/riverfelt/platform/internal/domain"
)

// DepositParams credits external funds.
type DepositParams struct {
	PlayerID    string
	Amount      int64
	Description string
}

// WithdrawParams debits external funds.
type WithdrawParams struct {
	PlayerID    string
	Amount      int64
	Description string
}

// Deposit credits the wallet, bounded by the daily deposit cap.
func (e *Engine) Deposit(ctx context.Context, p DepositParams) (*domain.WalletView, error) {
	if err := domain.ValidatePlayerID("playerId", p.PlayerID); err != nil {
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
	row := e.dailyRowLocked(p.PlayerID, now)
	if remaining := e.cfg.DailyDepositLimit - row.Deposits; p.Amount > remaining {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrDailyLimit("deposit", remaining, p.Amount)
	}

	w.Balance += p.Amount
	w.LastUpdated = now
	row.Deposits += p.Amount
	desc := p.Description
	if desc == "" {
		desc = "deposit"
	}
	entry := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:    p.PlayerID,
		Kind:        domain.KindDeposit,
		Amount:      p.Amount,
		PostBalance: w.Balance,
		Description: desc,
	}, now)
	view := e.viewLocked(w)
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entry)

	e.logger.Info("deposit credited", "player_id", p.PlayerID, "amount", p.Amount)
	return view, nil
}

// Withdraw debits the wallet. Requires available funds (escrow is not
// spendable) and respects the daily withdrawal cap.
func (e *Engine) Withdraw(ctx context.Context, p WithdrawParams) (*domain.WalletView, error) {
	if err := domain.ValidatePlayerID("playerId", p.PlayerID); err != nil {
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
	row := e.dailyRowLocked(p.PlayerID, now)
	if remaining := e.cfg.DailyWithdrawalLimit - row.Withdrawals; p.Amount > remaining {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrDailyLimit("withdrawal", remaining, p.Amount)
	}
	if available := e.availableLocked(w); available < p.Amount {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrInsufficientFunds(p.PlayerID, available, p.Amount)
	}

	w.Balance -= p.Amount
	w.LastUpdated = now
	row.Withdrawals += p.Amount
	desc := p.Description
	if desc == "" {
		desc = "withdrawal"
	}
	entry := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:    p.PlayerID,
		Kind:        domain.KindWithdrawal,
		Amount:      -p.Amount,
		PostBalance: w.Balance,
		Description: desc,
	}, now)
	view := e.viewLocked(w)
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entry)

	e.logger.Info("withdrawal debited", "player_id", p.PlayerID, "amount", p.Amount)
	return view, nil
}
