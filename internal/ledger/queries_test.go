package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/riverfelt/platform/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWalletUnknownPlayer(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.GetWallet("ghost")
	assert.Equal(t, 404, appStatus(t, err))
}

func TestListTransactionsFilters(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	initWallet(t, eng, "p1", 10_000)
	initWallet(t, eng, "p2", 10_000)

	_, err := eng.BuyIn(ctx, BuyInParams{PlayerID: "p1", TableID: "t1", Amount: 100})
	require.NoError(t, err)
	_, err = eng.Deposit(ctx, DepositParams{PlayerID: "p1", Amount: 500})
	require.NoError(t, err)
	_, err = eng.Deposit(ctx, DepositParams{PlayerID: "p2", Amount: 500})
	require.NoError(t, err)
	_, err = eng.ProcessWinnings(ctx, ProcessWinningsParams{
		TableID: "t2",
		HandID:  "h7",
		Winners: []PlayerAmount{{PlayerID: "p1", Amount: 50}},
		Losers:  []PlayerAmount{{PlayerID: "p2", Amount: 50}},
	})
	require.NoError(t, err)

	// By player.
	entries, err := eng.ListTransactions(TransactionFilter{PlayerID: "p1"})
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, "p1", entry.PlayerID)
	}

	// By kind across players.
	entries, err = eng.ListTransactions(TransactionFilter{Kind: domain.KindDeposit})
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, domain.KindDeposit, entry.Kind)
	}
	assert.Len(t, entries, 4) // two opening deposits + two explicit ones

	// By hand.
	entries, err = eng.ListTransactions(TransactionFilter{HandID: "h7"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// By table.
	entries, err = eng.ListTransactions(TransactionFilter{TableID: "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.KindBuyIn, entries[0].Kind)

	// Unknown kind is a validation error.
	_, err = eng.ListTransactions(TransactionFilter{Kind: "bogus"})
	assert.Equal(t, 400, appStatus(t, err))
}

func TestListTransactionsNewestFirstAndBounded(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	base := time.Now()
	eng.now = func() time.Time { return base }
	initWallet(t, eng, "p1", 0)
	initWallet(t, eng, "p2", 0)

	// Interleave deposits across two journals so ordering must merge across
	// wallets, not just within one.
	for i := 0; i < 10; i++ {
		tick := base.Add(time.Duration(i+1) * time.Second)
		eng.now = func() time.Time { return tick }
		pid := "p1"
		if i%2 == 1 {
			pid = "p2"
		}
		_, err := eng.Deposit(ctx, DepositParams{PlayerID: pid, Amount: 10})
		require.NoError(t, err)
	}

	entries, err := eng.ListTransactions(TransactionFilter{Limit: 6})
	require.NoError(t, err)
	require.Len(t, entries, 6)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.After(entries[i-1].Timestamp), "entries must be newest first")
	}

	// The two newest come from alternating wallets.
	assert.Equal(t, "p2", entries[0].PlayerID)
	assert.Equal(t, "p1", entries[1].PlayerID)
	assert.True(t, entries[0].Timestamp.Equal(base.Add(10*time.Second)))

	// Per-player filter still bounds and orders.
	entries, err = eng.ListTransactions(TransactionFilter{PlayerID: "p1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, "p1", entry.PlayerID)
	}
}

func TestStats(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	base := time.Now()
	eng.now = func() time.Time { return base.Add(-48 * time.Hour) }
	initWallet(t, eng, "stale", 100)

	eng.now = func() time.Time { return base }
	initWallet(t, eng, "p1", 1_000)
	_, err := eng.BuyIn(ctx, BuyInParams{PlayerID: "p1", TableID: "t1", Amount: 300})
	require.NoError(t, err)

	stats := eng.Stats()
	assert.Equal(t, 2, stats.TotalWallets)
	assert.Equal(t, 1, stats.ActiveWallets) // only p1 moved in the last 24h
	assert.Equal(t, int64(1_100), stats.TotalBalance)
	assert.Equal(t, int64(300), stats.TotalFrozen)
	assert.Equal(t, int64(3), stats.TotalTransactions)
}

func TestGetRakeStatsValidation(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.GetRakeStats("weekly")
	assert.Equal(t, 400, appStatus(t, err))

	// Empty period aggregates read as zero with no average.
	stats, err := eng.GetRakeStats("daily")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalRake)
	assert.Zero(t, stats.HandCount)
	assert.Zero(t, stats.AverageRake)
}

func TestHealth(t *testing.T) {
	eng, _ := newTestEngine(t)
	initWallet(t, eng, "p1", 1_000)
	_, err := eng.BuyIn(context.Background(), BuyInParams{PlayerID: "p1", TableID: "t1", Amount: 100})
	require.NoError(t, err)

	report := eng.Health()
	assert.Equal(t, "healthy", report.Status)
	assert.NotEmpty(t, report.InstanceID)
	assert.Equal(t, 1, report.Wallets)
	assert.Equal(t, int64(2), report.TotalTransactions)
	assert.Equal(t, int64(100), report.TotalFrozen)
	assert.GreaterOrEqual(t, report.UptimeSeconds, 0.0)
}
