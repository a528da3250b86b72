package ledger

import (
	"sort"
	"time"

	"github.com/riverfelt/platform/internal/domain"
)

// Read-side queries. These take the registry read lock for a short copy but
// never wallet locks: a query observes each wallet at a consistent point, yet
// a multi-wallet aggregate may straddle an in-flight transfer. Queries never
// gate mutation decisions, so that tearing is acceptable.

// viewLocked builds a defensive-copy WalletView. Caller holds e.mu.
func (e *Engine) viewLocked(w *domain.Wallet) *domain.WalletView {
	frozen := e.frozenSumLocked(w.PlayerID)
	entries := append([]*domain.FrozenEntry(nil), e.state.Frozen[w.PlayerID]...)
	return &domain.WalletView{
		Wallet:    w.Clone(),
		Frozen:    frozen,
		Available: w.Balance - frozen,
		Entries:   entries,
	}
}

// GetWallet returns the wallet view, or a 404 when the player is unknown.
func (e *Engine) GetWallet(playerID string) (*domain.WalletView, error) {
	if err := domain.ValidatePlayerID("playerId", playerID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.state.Wallets[playerID]
	if !ok {
		return nil, domain.ErrNotFound("wallet", playerID)
	}
	return e.viewLocked(w), nil
}

// TransactionFilter narrows the journal query. Zero values match everything.
type TransactionFilter struct {
	PlayerID string
	Kind     domain.EntryKind
	TableID  string
	HandID   string
	Limit    int
}

// DefaultTransactionLimit bounds an unqualified journal query.
const DefaultTransactionLimit = 50

// MaxTransactionLimit is the hard per-request cap.
const MaxTransactionLimit = 500

// ListTransactions returns matching journal entries, newest first.
func (e *Engine) ListTransactions(f TransactionFilter) ([]*domain.JournalEntry, error) {
	if f.Kind != "" && !domain.ValidKinds[f.Kind] {
		return nil, domain.ErrValidation("unknown transaction kind: " + string(f.Kind))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultTransactionLimit
	}
	if limit > MaxTransactionLimit {
		limit = MaxTransactionLimit
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	var journals [][]*domain.JournalEntry
	if f.PlayerID != "" {
		journals = append(journals, e.state.Journals[f.PlayerID])
	} else {
		for _, j := range e.state.Journals {
			journals = append(journals, j)
		}
	}

	matches := make([]*domain.JournalEntry, 0, limit)
	for _, j := range journals {
		for _, entry := range j {
			if f.Kind != "" && entry.Kind != f.Kind {
				continue
			}
			if f.TableID != "" && entry.TableID != f.TableID {
				continue
			}
			if f.HandID != "" && entry.HandID != f.HandID {
				continue
			}
			matches = append(matches, entry)
		}
	}

	// Newest first; stable so ties keep journal insertion order.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Timestamp.After(matches[j].Timestamp)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ServiceStats is the aggregate view over the whole shard.
type ServiceStats struct {
	TotalWallets      int   `json:"totalWallets"`
	ActiveWallets     int   `json:"activeWallets"`
	TotalBalance      int64 `json:"totalBalance"`
	TotalFrozen       int64 `json:"totalFrozen"`
	TotalTransactions int64 `json:"totalTransactions"`
}

// Stats aggregates wallet counts and totals. A wallet is active when its
// journal holds at least one entry from the last 24 hours.
func (e *Engine) Stats() *ServiceStats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cutoff := e.now().Add(-24 * time.Hour)
	stats := &ServiceStats{
		TotalWallets:      len(e.state.Wallets),
		TotalTransactions: e.state.TotalTransactions,
	}
	for pid, w := range e.state.Wallets {
		stats.TotalBalance += w.Balance
		stats.TotalFrozen += e.frozenSumLocked(pid)
		j := e.state.Journals[pid]
		if len(j) > 0 && j[len(j)-1].Timestamp.After(cutoff) {
			stats.ActiveWallets++
		}
	}
	return stats
}

// RakeStatsView adds the derived average to the raw period aggregate.
type RakeStatsView struct {
	Period      string    `json:"period"`
	TotalRake   int64     `json:"totalRake"`
	HandCount   int64     `json:"handCount"`
	AverageRake float64   `json:"averageRake"`
	LastUpdated time.Time `json:"lastUpdated,omitzero"`
}

// GetRakeStats returns the current period's rake aggregate for
// period in {daily, monthly, yearly}.
func (e *Engine) GetRakeStats(period string) (*RakeStatsView, error) {
	now := e.now()
	var label string
	switch period {
	case "daily":
		label = "daily:" + now.Local().Format("2006-01-02")
	case "monthly":
		label = "monthly:" + now.Local().Format("2006-01")
	case "yearly":
		label = "yearly:" + now.Local().Format("2006")
	default:
		return nil, domain.ErrValidation("period must be daily, monthly or yearly")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	view := &RakeStatsView{Period: label}
	if stats, ok := e.state.RakeStats[label]; ok {
		view.TotalRake = stats.TotalRake
		view.HandCount = stats.HandCount
		view.LastUpdated = stats.LastUpdated
		if stats.HandCount > 0 {
			view.AverageRake = float64(stats.TotalRake) / float64(stats.HandCount)
		}
	}
	return view, nil
}

// HealthReport is the liveness snapshot.
type HealthReport struct {
	Status            string  `json:"status"`
	InstanceID        string  `json:"instanceId"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
	Wallets           int     `json:"wallets"`
	TotalTransactions int64   `json:"totalTransactions"`
	TotalFrozen       int64   `json:"totalFrozen"`
	ResponseTimeMs    float64 `json:"responseTimeMs"`
}

// Health reports liveness plus the probe's own measured duration.
func (e *Engine) Health() *HealthReport {
	start := time.Now()

	e.mu.RLock()
	wallets := len(e.state.Wallets)
	totalTx := e.state.TotalTransactions
	var frozen int64
	for pid := range e.state.Wallets {
		frozen += e.frozenSumLocked(pid)
	}
	created := e.state.CreatedAt
	e.mu.RUnlock()

	uptime := e.now().Sub(created).Seconds()
	return &HealthReport{
		Status:            "healthy",
		InstanceID:        e.instanceID,
		UptimeSeconds:     uptime,
		Wallets:           wallets,
		TotalTransactions: totalTx,
		TotalFrozen:       frozen,
		ResponseTimeMs:    float64(time.Since(start).Microseconds()) / 1000,
	}
}
