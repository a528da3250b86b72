package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends for the wallet snapshot.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
)

// Config holds all shard configuration parsed from environment variables.
type Config struct {
	// Ledger policy
	Currency                 string `env:"CURRENCY" envDefault:"USD"`
	DefaultInitialBalance    int64  `env:"DEFAULT_INITIAL_BALANCE" envDefault:"10000"`
	MaxTransactionsPerPlayer int    `env:"MAX_TRANSACTIONS_PER_PLAYER" envDefault:"1000"`
	DailyDepositLimit        int64  `env:"DAILY_DEPOSIT_LIMIT" envDefault:"50000"`
	DailyWithdrawalLimit     int64  `env:"DAILY_WITHDRAWAL_LIMIT" envDefault:"25000"`
	DailyBuyInLimit          int64  `env:"DAILY_BUYIN_LIMIT" envDefault:"100000"`
	MinTransferAmount        int64  `env:"MIN_TRANSFER_AMOUNT" envDefault:"1"`
	MaxTransferAmount        int64  `env:"MAX_TRANSFER_AMOUNT" envDefault:"100000"`
	LockTimeoutMs            int64  `env:"LOCK_TIMEOUT_MS" envDefault:"30000"`
	IdempotencyTTLMs         int64  `env:"IDEMPOTENCY_TTL_MS" envDefault:"86400000"`

	// Server
	WalletShardPort int `env:"WALLET_SHARD_PORT" envDefault:"4002"`

	// Snapshot store
	StoreBackend string `env:"STORE_BACKEND" envDefault:"file"`
	SnapshotPath string `env:"SNAPSHOT_PATH" envDefault:"data/wallet-snapshot.json"`
	ShardID      string `env:"SHARD_ID" envDefault:"wallet-0"`

	// Database (postgres backend)
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"riverfelt"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"riverfelt"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"riverfelt"`
	PGMaxConns  int32  `env:"PG_MAX_CONNS" envDefault:"20"`
	PGMinConns  int32  `env:"PG_MIN_CONNS" envDefault:"2"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Error-event throttling
	EventErrorRate  float64 `env:"EVENT_ERROR_RATE" envDefault:"1"`
	EventErrorBurst int     `env:"EVENT_ERROR_BURST" envDefault:"5"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate rejects configurations the shard cannot safely run with.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendFile:
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required with STORE_BACKEND=file")
		}
	case StoreBackendPostgres:
		if c.PGMaxConns < 1 {
			return fmt.Errorf("PG_MAX_CONNS must be at least 1")
		}
		if c.PGMinConns < 0 || c.PGMinConns > c.PGMaxConns {
			return fmt.Errorf("PG_MIN_CONNS must be in [0, PG_MAX_CONNS], got %d", c.PGMinConns)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q",
			StoreBackendFile, StoreBackendPostgres, c.StoreBackend)
	}
	if c.DefaultInitialBalance < 0 {
		return fmt.Errorf("DEFAULT_INITIAL_BALANCE must not be negative")
	}
	if c.MaxTransactionsPerPlayer < 1 {
		return fmt.Errorf("MAX_TRANSACTIONS_PER_PLAYER must be at least 1")
	}
	if c.MinTransferAmount < 1 || c.MaxTransferAmount < c.MinTransferAmount {
		return fmt.Errorf("transfer bounds invalid: min=%d max=%d",
			c.MinTransferAmount, c.MaxTransferAmount)
	}
	if c.LockTimeoutMs < 1 {
		return fmt.Errorf("LOCK_TIMEOUT_MS must be positive")
	}
	if c.IdempotencyTTLMs < 1 {
		return fmt.Errorf("IDEMPOTENCY_TTL_MS must be positive")
	}
	return nil
}

// LockTimeout returns the forced-clear window for wallet locks.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMs) * time.Millisecond
}

// IdempotencyTTL returns the replay-cache retention window.
func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMs) * time.Millisecond
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
