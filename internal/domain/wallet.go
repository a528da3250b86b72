package domain

import (
	"time"

	"github.com/google/uuid"
)

// HousePlayerID is the sentinel wallet that accumulates rake. It is created
// lazily by the first collect-rake and is never created by initialize.
const HousePlayerID = "house"

// Wallet is the authoritative balance record for one player. Balance is in the
// minor unit of the deployment currency and never goes negative.
type Wallet struct {
	PlayerID    string    `json:"playerId"`
	Balance     int64     `json:"balance"`
	Currency    string    `json:"currency"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone returns a copy safe to mutate or hand out.
func (w *Wallet) Clone() *Wallet {
	c := *w
	return &c
}

// WalletView is the read model returned by wallet queries: the wallet plus the
// frozen/available split derived from the frozen-funds ledger.
type WalletView struct {
	Wallet    *Wallet        `json:"wallet"`
	Frozen    int64          `json:"frozen"`
	Available int64          `json:"available"`
	Entries   []*FrozenEntry `json:"frozenEntries,omitempty"`
}

// FreezeReason tags why funds were escrowed.
type FreezeReason string

const (
	FreezeBuyIn FreezeReason = "buy_in"
)

// FrozenEntry is escrow tied to a seat: funds counted in Wallet.Balance but
// not available until cash-out or rollback-buy-in consumes the entry.
type FrozenEntry struct {
	ID       uuid.UUID    `json:"id"`
	PlayerID string       `json:"playerId"`
	TableID  string       `json:"tableId"`
	Amount   int64        `json:"amount"`
	Reason   FreezeReason `json:"reason"`
	FrozenAt time.Time    `json:"frozenAt"`
}
