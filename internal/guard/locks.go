// Package guard holds the in-process safety primitives of the wallet shard:
// the per-wallet lock manager and the error-event rate limiter.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// LockManager serializes operations per wallet. Transfers and batch
// settlements acquire multiple locks in sorted key order, which makes the
// acquisition order deterministic and deadlock-free.
//
// Each lock carries a safety timeout: if a holder exceeds it, the next waiter
// forcibly clears the lock and logs the event. A forced clear indicates a bug
// in a holder; correctness never depends on it.
type LockManager struct {
	mu      sync.Mutex
	locks   map[string]*walletLock
	timeout time.Duration
	logger  *slog.Logger
}

type walletLock struct {
	sem        chan struct{} // cap 1; full means held
	mu         sync.Mutex
	acquiredAt time.Time
}

// NewLockManager creates a lock manager with the given safety timeout.
func NewLockManager(timeout time.Duration, logger *slog.Logger) *LockManager {
	return &LockManager{
		locks:   make(map[string]*walletLock),
		timeout: timeout,
		logger:  logger,
	}
}

func (m *LockManager) get(key string) *walletLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &walletLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	return l
}

func (l *walletLock) markAcquired(now time.Time) {
	l.mu.Lock()
	l.acquiredAt = now
	l.mu.Unlock()
}

func (l *walletLock) heldSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquiredAt
}

// Acquire takes the lock for one wallet. The returned release function must
// be called exactly once.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	l := m.get(key)
	for {
		select {
		case l.sem <- struct{}{}:
			l.markAcquired(time.Now())
			return func() { <-l.sem }, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
		case <-time.After(m.timeout):
			held := time.Since(l.heldSince())
			if held < m.timeout {
				continue // holder changed while we waited
			}
			// Forcibly clear the stuck holder and retry.
			m.logger.Error("wallet lock forcibly cleared",
				"key", key,
				"held_for_ms", held.Milliseconds(),
				"timeout_ms", m.timeout.Milliseconds())
			select {
			case <-l.sem:
			default:
			}
		}
	}
}

// AcquireMany takes the locks for all given wallets in sorted key order,
// deduplicating repeats. Releases already-held locks on failure.
func (m *LockManager) AcquireMany(ctx context.Context, keys []string) (func(), error) {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			uniq = append(uniq, k)
		}
	}
	sort.Strings(uniq)

	releases := make([]func(), 0, len(uniq))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range uniq {
		rel, err := m.Acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releaseAll, nil
}

// AcquirePair takes the locks for two wallets in sorted order. Both transfer
// directions lock in the same order, so opposing transfers cannot deadlock.
func (m *LockManager) AcquirePair(ctx context.Context, a, b string) (func(), error) {
	return m.AcquireMany(ctx, []string{a, b})
}
