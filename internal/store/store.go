// Package store provides the durable snapshot backends for the wallet shard.
// The whole service state is serialized into one blob and written atomically
// per committed mutation; either the new snapshot is visible after a crash or
// the previous one is.
package store

import (
	"context"
	"errors"
)

// ErrNoSnapshot is returned by Load when no snapshot has been written yet.
// Callers start from an empty state.
var ErrNoSnapshot = errors.New("store: no snapshot")

// SnapshotStore persists the serialized service state under one logical key.
type SnapshotStore interface {
	// Load returns the most recent snapshot, or ErrNoSnapshot.
	Load(ctx context.Context) ([]byte, error)
	// Save atomically replaces the snapshot.
	Save(ctx context.Context, blob []byte) error
	// Close releases any underlying resources.
	Close() error
}
