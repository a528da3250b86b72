package ledger

import (
	"context"
	"fmt"

	"github.com/riverfelt/platform/internal/domain"
)

// InitializeParams creates a wallet explicitly. InitialBalance nil means the
// configured default.
type InitializeParams struct {
	PlayerID       string
	InitialBalance *int64
}

// Initialize creates the wallet and its synthetic opening deposit entry.
// Fails with a conflict when the wallet already exists.
func (e *Engine) Initialize(ctx context.Context, p InitializeParams) (*domain.WalletView, error) {
	if err := domain.ValidatePlayerID("playerId", p.PlayerID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	balance := e.cfg.DefaultInitialBalance
	if p.InitialBalance != nil {
		if err := domain.ValidateNonNegativeAmount("initialBalance", *p.InitialBalance); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		balance = *p.InitialBalance
	}

	release, err := e.locks.Acquire(ctx, p.PlayerID)
	if err != nil {
		return nil, domain.ErrInternal("acquire wallet lock", err)
	}
	defer release()

	now := e.now()
	e.mu.Lock()
	if _, exists := e.state.Wallets[p.PlayerID]; exists {
		e.mu.Unlock()
		return nil, domain.ErrConflict(fmt.Sprintf("wallet %s already exists", p.PlayerID))
	}
	e.sweepLocked(now)
	pre := e.captureLocked(false, p.PlayerID)
	w := e.createWalletLocked(p.PlayerID, balance, true, now)
	entry := e.state.Journals[p.PlayerID][len(e.state.Journals[p.PlayerID])-1]
	view := e.viewLocked(w)
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, entry)

	e.logger.Info("wallet initialized", "player_id", p.PlayerID, "balance", balance)
	return view, nil
}
