package domain

import (
	"time"
)

// DailyLimit holds the running totals for one (playerId, localDate) pair.
// Rows older than 7 local days are garbage-collected opportunistically.
type DailyLimit struct {
	PlayerID    string `json:"playerId"`
	Date        string `json:"date"` // YYYY-MM-DD, local time
	Deposits    int64  `json:"deposits"`
	Withdrawals int64  `json:"withdrawals"`
	BuyIns      int64  `json:"buyIns"`
}

// Clone returns a copy safe to mutate.
func (d *DailyLimit) Clone() *DailyLimit {
	c := *d
	return &c
}

// DailyLimitKey builds the DailyLimits map key.
func DailyLimitKey(playerID, date string) string {
	return playerID + "|" + date
}

// RakeStats is the rolling rake aggregate for one period label.
type RakeStats struct {
	Period      string    `json:"period"` // e.g. "daily:2025-01-31"
	TotalRake   int64     `json:"totalRake"`
	HandCount   int64     `json:"handCount"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone returns a copy safe to mutate.
func (r *RakeStats) Clone() *RakeStats {
	c := *r
	return &c
}

// IdempotencyRecord caches a prior response under a client-supplied key.
// Body is the exact serialized response; replays return it byte-for-byte.
type IdempotencyRecord struct {
	Key       string    `json:"key"`
	Status    int       `json:"status"`
	Body      []byte    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ServiceState is the atomic snapshot unit: everything the shard owns.
// It is serialized as one blob per committed mutation; unknown fields on
// load are tolerated for forward compatibility.
type ServiceState struct {
	Wallets           map[string]*Wallet             `json:"wallets"`
	Journals          map[string][]*JournalEntry     `json:"journals"`
	Frozen            map[string][]*FrozenEntry      `json:"frozen"`
	DailyLimits       map[string]*DailyLimit         `json:"dailyLimits"`
	RakeStats         map[string]*RakeStats          `json:"rakeStats"`
	Idempotency       map[string]*IdempotencyRecord  `json:"idempotency"`
	CreatedAt         time.Time                      `json:"createdAt"`
	LastUpdated       time.Time                      `json:"lastUpdated"`
	TotalTransactions int64                          `json:"totalTransactions"`
}

// NewServiceState returns an empty state with all maps allocated.
func NewServiceState(now time.Time) *ServiceState {
	return &ServiceState{
		Wallets:     make(map[string]*Wallet),
		Journals:    make(map[string][]*JournalEntry),
		Frozen:      make(map[string][]*FrozenEntry),
		DailyLimits: make(map[string]*DailyLimit),
		RakeStats:   make(map[string]*RakeStats),
		Idempotency: make(map[string]*IdempotencyRecord),
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// EnsureMaps allocates any map left nil by an older snapshot.
func (s *ServiceState) EnsureMaps() {
	if s.Wallets == nil {
		s.Wallets = make(map[string]*Wallet)
	}
	if s.Journals == nil {
		s.Journals = make(map[string][]*JournalEntry)
	}
	if s.Frozen == nil {
		s.Frozen = make(map[string][]*FrozenEntry)
	}
	if s.DailyLimits == nil {
		s.DailyLimits = make(map[string]*DailyLimit)
	}
	if s.RakeStats == nil {
		s.RakeStats = make(map[string]*RakeStats)
	}
	if s.Idempotency == nil {
		s.Idempotency = make(map[string]*IdempotencyRecord)
	}
}
