package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the snapshot as a single row keyed by shard ID.
// The upsert runs in one statement, so the replace is atomic; concurrent
// shards never share a shard ID.
type PostgresStore struct {
	pool    *pgxpool.Pool
	shardID string
}

// NewPostgresStore creates a PostgresStore for the given shard ID. The
// wallet_snapshots table is owned by the embedded migration (see infra).
func NewPostgresStore(pool *pgxpool.Pool, shardID string) *PostgresStore {
	return &PostgresStore{pool: pool, shardID: shardID}
}

// Load reads the snapshot row for this shard.
func (s *PostgresStore) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM wallet_snapshots WHERE shard_id = $1`, s.shardID,
	).Scan(&blob)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return blob, nil
}

// Save upserts the snapshot row for this shard.
func (s *PostgresStore) Save(ctx context.Context, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO wallet_snapshots (shard_id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (shard_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		s.shardID, blob)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
