package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riverfelt/platform/internal/guard"
	"github.com/riverfelt/platform/internal/infra"
	"github.com/riverfelt/platform/internal/ledger"
	"github.com/riverfelt/platform/internal/store"
	"github.com/riverfelt/platform/internal/walletserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("wallet shard failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	snapshots, storeCheck, err := newSnapshotStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer snapshots.Close()

	locks := guard.NewLockManager(cfg.LockTimeout(), logger)
	eng := ledger.New(snapshots, locks, ledger.Config{
		Currency:                 cfg.Currency,
		DefaultInitialBalance:    cfg.DefaultInitialBalance,
		MaxTransactionsPerPlayer: cfg.MaxTransactionsPerPlayer,
		DailyDepositLimit:        cfg.DailyDepositLimit,
		DailyWithdrawalLimit:     cfg.DailyWithdrawalLimit,
		DailyBuyInLimit:          cfg.DailyBuyInLimit,
		MinTransferAmount:        cfg.MinTransferAmount,
		MaxTransferAmount:        cfg.MaxTransferAmount,
		IdempotencyTTL:           cfg.IdempotencyTTL(),
	}, logger)

	if err := eng.Load(ctx); err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	logger.Info("wallet shard state loaded", "instance_id", eng.InstanceID())

	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	defer producer.Close()
	eng.SetEventSink(infra.NewEntrySink(producer, cfg.EventErrorRate, cfg.EventErrorBurst, logger))

	addr := fmt.Sprintf(":%d", cfg.WalletShardPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      walletserver.NewRouter(eng, storeCheck, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("wallet shard starting", "addr", addr, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("wallet shard shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("wallet shard error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("wallet shard shutdown failed: %w", err)
	}

	logger.Info("wallet shard stopped gracefully")
	return nil
}

// newSnapshotStore selects the configured snapshot backend. The postgres
// backend migrates its schema before first use and exposes a reachability
// probe for the health endpoint; the file backend needs none.
func newSnapshotStore(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (store.SnapshotStore, walletserver.StoreCheck, error) {
	switch cfg.StoreBackend {
	case infra.StoreBackendPostgres:
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("wallet shard connected to postgres", "shard_id", cfg.ShardID)
		check := func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) }
		return store.NewPostgresStore(pool, cfg.ShardID), check, nil
	default:
		fs, err := store.NewFileStore(cfg.SnapshotPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open snapshot file store: %w", err)
		}
		logger.Info("wallet shard using file snapshots", "path", cfg.SnapshotPath)
		return fs, nil, nil
	}
}
