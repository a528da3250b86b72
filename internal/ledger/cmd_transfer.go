package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/riverfelt/platform/internal/domain"
)

// TransferParams moves funds between two player wallets.
type TransferParams struct {
	FromPlayerID string
	ToPlayerID   string
	Amount       int64
	Description  string
}

// TransferResult reports both post-transfer wallets and the shared transfer ID.
type TransferResult struct {
	TransferID uuid.UUID      `json:"transferId"`
	From       *domain.Wallet `json:"from"`
	To         *domain.Wallet `json:"to"`
	Amount     int64          `json:"amount"`
}

// Transfer debits one wallet and credits the other in a single snapshot.
// Both locks are taken in sorted player-ID order regardless of direction and
// the sender's available balance is re-checked under the locks.
func (e *Engine) Transfer(ctx context.Context, p TransferParams) (*TransferResult, error) {
	if err := domain.ValidatePlayerID("fromPlayerId", p.FromPlayerID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePlayerID("toPlayerId", p.ToPlayerID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if p.FromPlayerID == p.ToPlayerID {
		return nil, domain.ErrValidation("cannot transfer to self")
	}
	if p.Amount < e.cfg.MinTransferAmount || p.Amount > e.cfg.MaxTransferAmount {
		return nil, domain.ErrValidation(fmt.Sprintf(
			"transfer amount must be between %d and %d, got %d",
			e.cfg.MinTransferAmount, e.cfg.MaxTransferAmount, p.Amount))
	}

	release, err := e.locks.AcquirePair(ctx, p.FromPlayerID, p.ToPlayerID)
	if err != nil {
		return nil, domain.ErrInternal("acquire wallet locks", err)
	}
	defer release()

	now := e.now()
	e.mu.Lock()
	e.sweepLocked(now)
	pre := e.captureLocked(false, p.FromPlayerID, p.ToPlayerID)

	from := e.getOrCreateLocked(p.FromPlayerID, now)
	to := e.getOrCreateLocked(p.ToPlayerID, now)

	if available := e.availableLocked(from); available < p.Amount {
		pre.restore(e.state)
		e.mu.Unlock()
		return nil, domain.ErrInsufficientFunds(p.FromPlayerID, available, p.Amount)
	}

	transferID := uuid.New()
	from.Balance -= p.Amount
	from.LastUpdated = now
	to.Balance += p.Amount
	to.LastUpdated = now

	desc := p.Description
	if desc == "" {
		desc = fmt.Sprintf("transfer %s -> %s", p.FromPlayerID, p.ToPlayerID)
	}
	outgoing := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:        p.FromPlayerID,
		Kind:            domain.KindTransfer,
		Amount:          -p.Amount,
		PostBalance:     from.Balance,
		RelatedPlayerID: p.ToPlayerID,
		Description:     desc,
		Metadata: map[string]any{
			"transferId": transferID.String(),
			"direction":  string(domain.TransferOutgoing),
		},
	}, now)
	incoming := e.appendEntryLocked(&domain.JournalEntry{
		PlayerID:        p.ToPlayerID,
		Kind:            domain.KindTransfer,
		Amount:          p.Amount,
		PostBalance:     to.Balance,
		RelatedPlayerID: p.FromPlayerID,
		Description:     desc,
		Metadata: map[string]any{
			"transferId": transferID.String(),
			"direction":  string(domain.TransferIncoming),
		},
	}, now)
	result := &TransferResult{
		TransferID: transferID,
		From:       from.Clone(),
		To:         to.Clone(),
		Amount:     p.Amount,
	}
	e.mu.Unlock()

	if err := e.commit(ctx, pre); err != nil {
		return nil, err
	}
	e.publish(ctx, outgoing, incoming)

	e.logger.Info("transfer settled",
		"from", p.FromPlayerID, "to", p.ToPlayerID,
		"amount", p.Amount, "transfer_id", transferID)
	return result, nil
}
