package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind enumerates all journal entry kinds.
type EntryKind string

const (
	KindBuyIn      EntryKind = "buy_in"
	KindCashOut    EntryKind = "cash_out"
	KindWin        EntryKind = "win"
	KindLoss       EntryKind = "loss"
	KindDeposit    EntryKind = "deposit"
	KindWithdrawal EntryKind = "withdrawal"
	KindTransfer   EntryKind = "transfer"
	KindRefund     EntryKind = "refund"
	KindRake       EntryKind = "rake"
)

// ValidKinds is the set accepted by the transactions query filter.
var ValidKinds = map[EntryKind]bool{
	KindBuyIn: true, KindCashOut: true, KindWin: true, KindLoss: true,
	KindDeposit: true, KindWithdrawal: true, KindTransfer: true,
	KindRefund: true, KindRake: true,
}

// TransferDirection tags the two legs of a peer-to-peer transfer.
type TransferDirection string

const (
	TransferOutgoing TransferDirection = "outgoing"
	TransferIncoming TransferDirection = "incoming"
)

// JournalEntry is one append-only ledger record. Amount is signed (credit
// positive, debit negative); PostBalance is the wallet balance immediately
// after the entry was applied. Entries are never mutated after insertion.
type JournalEntry struct {
	ID              uuid.UUID      `json:"id"`
	PlayerID        string         `json:"playerId"`
	Kind            EntryKind      `json:"kind"`
	Amount          int64          `json:"amount"`
	PostBalance     int64          `json:"postBalance"`
	TableID         string         `json:"tableId,omitempty"`
	HandID          string         `json:"handId,omitempty"`
	RelatedPlayerID string         `json:"relatedPlayerId,omitempty"`
	Description     string         `json:"description,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
}
