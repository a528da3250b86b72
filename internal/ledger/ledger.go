// Package ledger owns the wallet shard's state: wallets, per-wallet journals,
// frozen funds, daily limits, rake aggregates and the idempotency cache. All
// mutating commands follow the same discipline: acquire the wallet lock(s),
// re-check every precondition under the lock, capture a pre-image of the
// substructures about to change, apply, persist the whole-state snapshot, and
// roll the pre-image back if the persist fails.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/riverfelt/platform/internal/domain"
	"github.com/riverfelt/platform/internal/guard"
	"github.com/riverfelt/platform/internal/store"
)

// Config holds the policy knobs of the engine.
type Config struct {
	Currency                 string
	DefaultInitialBalance    int64
	MaxTransactionsPerPlayer int
	DailyDepositLimit        int64
	DailyWithdrawalLimit     int64
	DailyBuyInLimit          int64
	MinTransferAmount        int64
	MaxTransferAmount        int64
	IdempotencyTTL           time.Duration
}

// EventSink receives committed journal entries. Implementations must not
// block the calling goroutine.
type EventSink interface {
	EntryPosted(ctx context.Context, entry *domain.JournalEntry)
}

// Engine is the single owner of the shard's state. Operations on one wallet
// are serialized through the lock manager; the engine mutex only guards the
// in-memory maps for the short apply and marshal windows.
type Engine struct {
	mu    sync.RWMutex
	state *domain.ServiceState

	store  store.SnapshotStore
	locks  *guard.LockManager
	cfg    Config
	logger *slog.Logger
	events EventSink

	now        func() time.Time
	instanceID string
}

// New creates an engine. Call Load before serving requests.
func New(st store.SnapshotStore, locks *guard.LockManager, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		store:      st,
		locks:      locks,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		instanceID: uuid.New().String(),
	}
}

// SetEventSink attaches a sink for committed entries.
func (e *Engine) SetEventSink(sink EventSink) { e.events = sink }

// InstanceID returns the identifier minted for this process.
func (e *Engine) InstanceID() string { return e.instanceID }

// Load reads the snapshot and installs it as the working state. A missing
// snapshot yields an empty state.
func (e *Engine) Load(ctx context.Context) error {
	blob, err := e.store.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		e.mu.Lock()
		e.state = domain.NewServiceState(e.now())
		e.mu.Unlock()
		e.logger.Info("no snapshot found, starting with empty state")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}

	st := &domain.ServiceState{}
	if err := json.Unmarshal(blob, st); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	st.EnsureMaps()

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	e.logger.Info("snapshot loaded",
		"wallets", len(st.Wallets),
		"total_transactions", st.TotalTransactions)
	return nil
}

// localDate formats t as the local-time limit bucket key.
func localDate(t time.Time) string {
	return t.Local().Format("2006-01-02")
}

// periodLabels returns the daily/monthly/yearly rake stat keys for t.
func periodLabels(t time.Time) []string {
	lt := t.Local()
	return []string{
		"daily:" + lt.Format("2006-01-02"),
		"monthly:" + lt.Format("2006-01"),
		"yearly:" + lt.Format("2006"),
	}
}

// --- locked helpers; callers hold e.mu ---

// createWalletLocked installs a new wallet. When withInitialEntry is set, a
// synthetic deposit entry records the opening balance.
func (e *Engine) createWalletLocked(playerID string, balance int64, withInitialEntry bool, now time.Time) *domain.Wallet {
	w := &domain.Wallet{
		PlayerID:    playerID,
		Balance:     balance,
		Currency:    e.cfg.Currency,
		LastUpdated: now,
	}
	e.state.Wallets[playerID] = w
	if withInitialEntry {
		e.appendEntryLocked(&domain.JournalEntry{
			PlayerID:    playerID,
			Kind:        domain.KindDeposit,
			Amount:      balance,
			PostBalance: balance,
			Description: "initial balance",
		}, now)
	}
	return w
}

// getOrCreateLocked returns the wallet, creating it with the default initial
// balance (and the synthetic opening entry) when absent.
func (e *Engine) getOrCreateLocked(playerID string, now time.Time) *domain.Wallet {
	if w, ok := e.state.Wallets[playerID]; ok {
		return w
	}
	return e.createWalletLocked(playerID, e.cfg.DefaultInitialBalance, true, now)
}

// appendEntryLocked assigns identity and time to the entry, appends it to the
// player's journal, and evicts the oldest entries past the cap. Eviction never
// rewrites PostBalance: the wallet balance is authoritative regardless of
// journal contents.
func (e *Engine) appendEntryLocked(entry *domain.JournalEntry, now time.Time) *domain.JournalEntry {
	entry.ID = uuid.New()
	entry.Timestamp = now

	j := append(e.state.Journals[entry.PlayerID], entry)
	if limit := e.cfg.MaxTransactionsPerPlayer; limit > 0 && len(j) > limit {
		j = append([]*domain.JournalEntry(nil), j[len(j)-limit:]...)
	}
	e.state.Journals[entry.PlayerID] = j

	e.state.TotalTransactions++
	e.state.LastUpdated = now
	return entry
}

// frozenSumLocked sums all escrow for a player.
func (e *Engine) frozenSumLocked(playerID string) int64 {
	var sum int64
	for _, f := range e.state.Frozen[playerID] {
		sum += f.Amount
	}
	return sum
}

// availableLocked is balance minus escrow.
func (e *Engine) availableLocked(w *domain.Wallet) int64 {
	return w.Balance - e.frozenSumLocked(w.PlayerID)
}

// findFrozenLocked returns the first frozen entry for the table, or nil.
func (e *Engine) findFrozenLocked(playerID, tableID string) *domain.FrozenEntry {
	for _, f := range e.state.Frozen[playerID] {
		if f.TableID == tableID {
			return f
		}
	}
	return nil
}

// freezeLocked records escrow. Callers have already validated the available
// balance under the wallet lock.
func (e *Engine) freezeLocked(playerID, tableID string, amount int64, reason domain.FreezeReason, now time.Time) *domain.FrozenEntry {
	f := &domain.FrozenEntry{
		ID:       uuid.New(),
		PlayerID: playerID,
		TableID:  tableID,
		Amount:   amount,
		Reason:   reason,
		FrozenAt: now,
	}
	e.state.Frozen[playerID] = append(e.state.Frozen[playerID], f)
	return f
}

// releaseFrozenLocked removes the first frozen entry matching the table and
// returns it, or nil when none exists.
func (e *Engine) releaseFrozenLocked(playerID, tableID string) *domain.FrozenEntry {
	list := e.state.Frozen[playerID]
	for i, f := range list {
		if f.TableID == tableID {
			e.state.Frozen[playerID] = append(append([]*domain.FrozenEntry(nil), list[:i]...), list[i+1:]...)
			if len(e.state.Frozen[playerID]) == 0 {
				delete(e.state.Frozen, playerID)
			}
			return f
		}
	}
	return nil
}

// dailyRowLocked returns (creating if needed) today's limit row for a player.
func (e *Engine) dailyRowLocked(playerID string, now time.Time) *domain.DailyLimit {
	date := localDate(now)
	key := domain.DailyLimitKey(playerID, date)
	row, ok := e.state.DailyLimits[key]
	if !ok {
		row = &domain.DailyLimit{PlayerID: playerID, Date: date}
		e.state.DailyLimits[key] = row
	}
	return row
}

// sweepLocked drops daily-limit rows older than 7 local days and expired
// idempotency records. Runs opportunistically at the start of mutations, so a
// later rollback never needs to resurrect swept garbage.
func (e *Engine) sweepLocked(now time.Time) {
	cutoff := localDate(now.AddDate(0, 0, -7))
	for key, row := range e.state.DailyLimits {
		if row.Date < cutoff {
			delete(e.state.DailyLimits, key)
		}
	}
	for key, rec := range e.state.Idempotency {
		if now.Sub(rec.CreatedAt) > e.cfg.IdempotencyTTL {
			delete(e.state.Idempotency, key)
		}
	}
}

// --- pre-image capture and commit ---

// preImage is a copy of the substructures a command may mutate. Journal and
// frozen slices are copied by header only: existing entries are never mutated
// in place, so restoring the header restores the pre-operation view.
type preImage struct {
	wallets   map[string]*domain.Wallet
	journals  map[string][]*domain.JournalEntry
	frozen    map[string][]*domain.FrozenEntry
	dailies   map[string]*domain.DailyLimit
	players   map[string]bool
	rake      map[string]*domain.RakeStats
	withRake  bool
	totalTx   int64
	lastTouch time.Time
}

// captureLocked snapshots the state touched on behalf of the given players.
func (e *Engine) captureLocked(withRake bool, playerIDs ...string) *preImage {
	pre := &preImage{
		wallets:   make(map[string]*domain.Wallet, len(playerIDs)),
		journals:  make(map[string][]*domain.JournalEntry, len(playerIDs)),
		frozen:    make(map[string][]*domain.FrozenEntry, len(playerIDs)),
		dailies:   make(map[string]*domain.DailyLimit),
		players:   make(map[string]bool, len(playerIDs)),
		withRake:  withRake,
		totalTx:   e.state.TotalTransactions,
		lastTouch: e.state.LastUpdated,
	}
	for _, pid := range playerIDs {
		if pre.players[pid] {
			continue
		}
		pre.players[pid] = true
		if w, ok := e.state.Wallets[pid]; ok {
			pre.wallets[pid] = w.Clone()
		} else {
			pre.wallets[pid] = nil
		}
		pre.journals[pid] = append([]*domain.JournalEntry(nil), e.state.Journals[pid]...)
		pre.frozen[pid] = append([]*domain.FrozenEntry(nil), e.state.Frozen[pid]...)
	}
	for key, row := range e.state.DailyLimits {
		if pre.players[row.PlayerID] {
			pre.dailies[key] = row.Clone()
		}
	}
	if withRake {
		pre.rake = make(map[string]*domain.RakeStats, len(e.state.RakeStats))
		for k, v := range e.state.RakeStats {
			pre.rake[k] = v.Clone()
		}
	}
	return pre
}

// restore puts the captured substructures back. Caller holds e.mu.
func (pre *preImage) restore(s *domain.ServiceState) {
	for pid, w := range pre.wallets {
		if w == nil {
			delete(s.Wallets, pid)
		} else {
			s.Wallets[pid] = w
		}
	}
	for pid := range pre.players {
		if j := pre.journals[pid]; len(j) > 0 {
			s.Journals[pid] = j
		} else {
			delete(s.Journals, pid)
		}
		if f := pre.frozen[pid]; len(f) > 0 {
			s.Frozen[pid] = f
		} else {
			delete(s.Frozen, pid)
		}
	}
	for key, row := range s.DailyLimits {
		if pre.players[row.PlayerID] {
			delete(s.DailyLimits, key)
		}
	}
	for key, row := range pre.dailies {
		s.DailyLimits[key] = row
	}
	if pre.withRake {
		s.RakeStats = pre.rake
	}
	s.TotalTransactions = pre.totalTx
	s.LastUpdated = pre.lastTouch
}

// commit serializes the full state and writes it to the snapshot store. On
// failure the pre-image is restored and the caller sees an internal error;
// observable state either advanced atomically or not at all.
func (e *Engine) commit(ctx context.Context, pre *preImage) error {
	e.mu.RLock()
	blob, err := json.Marshal(e.state)
	e.mu.RUnlock()
	if err != nil {
		e.rollback(ctx, pre)
		return domain.ErrInternal("encode snapshot", err)
	}
	if err := e.store.Save(ctx, blob); err != nil {
		e.rollback(ctx, pre)
		return domain.ErrInternal("persist snapshot", err)
	}
	return nil
}

// rollback restores the pre-image and writes a corrective snapshot. The
// marshal in commit runs after the apply section released the mutex, so an
// interleaved operation on another wallet may already have persisted a
// snapshot containing the changes being rolled back here; the corrective
// write re-converges the durable snapshot with memory so a crash cannot
// resurrect the rolled-back mutation.
func (e *Engine) rollback(ctx context.Context, pre *preImage) {
	e.mu.Lock()
	pre.restore(e.state)
	blob, err := json.Marshal(e.state)
	e.mu.Unlock()
	e.logger.Error("snapshot write failed, in-memory state rolled back")
	if err != nil {
		e.logger.Error("encode corrective snapshot failed", "error", err)
		return
	}
	if err := e.store.Save(ctx, blob); err != nil {
		e.logger.Error("corrective snapshot write failed", "error", err)
	}
}

// publish hands committed entries to the event sink, if any.
func (e *Engine) publish(ctx context.Context, entries ...*domain.JournalEntry) {
	if e.events == nil {
		return
	}
	for _, entry := range entries {
		e.events.EntryPosted(ctx, entry)
	}
}

// --- idempotency cache ---

// ReplayLookup returns the cached response for a key, if present and fresh.
func (e *Engine) ReplayLookup(key string) (*domain.IdempotencyRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return nil, false
	}
	rec, ok := e.state.Idempotency[key]
	if !ok || e.now().Sub(rec.CreatedAt) > e.cfg.IdempotencyTTL {
		return nil, false
	}
	return rec, true
}

// StoreReplay caches the exact response bytes for a key and persists the
// snapshot. A persist failure here is logged but not surfaced: the operation
// itself already committed, and losing the record only degrades a future
// retry to re-execution, which first-request-wins tolerates.
func (e *Engine) StoreReplay(ctx context.Context, key string, status int, body []byte) {
	now := e.now()
	e.mu.Lock()
	e.sweepLocked(now)
	e.state.Idempotency[key] = &domain.IdempotencyRecord{
		Key:       key,
		Status:    status,
		Body:      body,
		CreatedAt: now,
	}
	blob, err := json.Marshal(e.state)
	e.mu.Unlock()
	if err != nil {
		e.logger.Warn("encode snapshot for idempotency record failed", "error", err, "key", key)
		return
	}
	if err := e.store.Save(ctx, blob); err != nil {
		e.logger.Warn("persist idempotency record failed", "error", err, "key", key)
	}
}
