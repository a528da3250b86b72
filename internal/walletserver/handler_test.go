package walletserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riverfelt/platform/internal/guard"
	"github.com/riverfelt/platform/internal/ledger"
	"github.com/riverfelt/platform/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return newServerWith(t, store.NewMemoryStore(), nil)
}

func newServerWith(t *testing.T, st store.SnapshotStore, check StoreCheck) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	eng := ledger.New(st, guard.NewLockManager(5*time.Second, logger), ledger.Config{
		Currency:                 "USD",
		DefaultInitialBalance:    10_000,
		MaxTransactionsPerPlayer: 1_000,
		DailyDepositLimit:        50_000,
		DailyWithdrawalLimit:     25_000,
		DailyBuyInLimit:          100_000,
		MinTransferAmount:        1,
		MaxTransferAmount:        100_000,
		IdempotencyTTL:           24 * time.Hour,
	}, logger)
	require.NoError(t, eng.Load(context.Background()))

	srv := httptest.NewServer(NewRouter(eng, check, logger))
	t.Cleanup(srv.Close)
	return srv
}

// slowStore delays every Save, standing in for a snapshot backend with real
// write latency.
type slowStore struct {
	*store.MemoryStore
	delay time.Duration
}

func (s *slowStore) Save(ctx context.Context, blob []byte) error {
	time.Sleep(s.delay)
	return s.MemoryStore.Save(ctx, blob)
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func getJSON(t *testing.T, srv *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func initPlayer(t *testing.T, srv *httptest.Server, playerID string, balance int64) {
	t.Helper()
	resp, body := postJSON(t, srv, "/wallet/initialize", map[string]any{
		"playerId":       playerID,
		"initialBalance": balance,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "init %s: %v", playerID, body)
}

func dataField(t *testing.T, body map[string]any, key string) any {
	t.Helper()
	data, ok := body["data"].(map[string]any)
	require.True(t, ok, "missing data object in %v", body)
	return data[key]
}

func TestInitializeAndGetWallet(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/wallet/initialize", map[string]any{
		"playerId":       "alice",
		"initialBalance": 5_000,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, body = getJSON(t, srv, "/wallet?playerId=alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	wallet := dataField(t, body, "wallet").(map[string]any)
	assert.Equal(t, float64(5_000), wallet["balance"])
	assert.Equal(t, float64(5_000), dataField(t, body, "available"))

	// Duplicate initialize conflicts with 400.
	resp, body = postJSON(t, srv, "/wallet/initialize", map[string]any{"playerId": "alice"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestGetWalletUnknownPlayerIs404(t *testing.T) {
	srv := newTestServer(t)

	resp, body := getJSON(t, srv, "/wallet?playerId=ghost")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestBuyInFlatResponseShape(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)

	resp, body := postJSON(t, srv, "/wallet/buy-in", map[string]any{
		"playerId": "alice",
		"tableId":  "t1",
		"amount":   200,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Flat shape: no data wrapper.
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(200), body["chipCount"])
	assert.Equal(t, float64(800), body["walletBalance"])
	_, hasData := body["data"]
	assert.False(t, hasData)

	// Insufficient available funds.
	resp, body = postJSON(t, srv, "/wallet/buy-in", map[string]any{
		"playerId": "alice",
		"tableId":  "t2",
		"amount":   5_000,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestIdempotentBuyInReplay(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)

	headers := map[string]string{IdempotencyKeyHeader: "buyin-alice-t1-1"}

	first, firstBody := postJSON(t, srv, "/wallet/buy-in", map[string]any{
		"playerId": "alice", "tableId": "t1", "amount": 200,
	}, headers)
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Empty(t, first.Header.Get(ReplayedHeader))

	second, secondBody := postJSON(t, srv, "/wallet/buy-in", map[string]any{
		"playerId": "alice", "tableId": "t1", "amount": 200,
	}, headers)
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(ReplayedHeader))
	assert.Equal(t, firstBody, secondBody)

	// The buy-in ran once: available stays 800 and there is one frozen entry.
	resp, body := getJSON(t, srv, "/wallet?playerId=alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(800), dataField(t, body, "available"))
	assert.Equal(t, float64(200), dataField(t, body, "frozen"))
	frozen := dataField(t, body, "frozenEntries").([]any)
	assert.Len(t, frozen, 1)
}

func TestIdempotentReplayCoversRejections(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 100)

	headers := map[string]string{IdempotencyKeyHeader: "wd-1"}

	first, _ := postJSON(t, srv, "/wallet/withdraw", map[string]any{
		"playerId": "alice", "amount": 500,
	}, headers)
	require.Equal(t, http.StatusBadRequest, first.StatusCode)

	// The rejection is cached too: same key replays the 400.
	second, _ := postJSON(t, srv, "/wallet/withdraw", map[string]any{
		"playerId": "alice", "amount": 500,
	}, headers)
	assert.Equal(t, http.StatusBadRequest, second.StatusCode)
	assert.Equal(t, "true", second.Header.Get(ReplayedHeader))
}

func TestCashOutRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)

	resp, _ := postJSON(t, srv, "/wallet/buy-in", map[string]any{
		"playerId": "alice", "tableId": "t1", "amount": 300,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, srv, "/wallet/cash-out", map[string]any{
		"playerId": "alice", "tableId": "t1", "chipAmount": 450,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(150), dataField(t, body, "netChange"))

	resp, body = getJSON(t, srv, "/wallet?playerId=alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1_150), dataField(t, body, "available"))

	// Cashing out with no seat at the table is rejected.
	resp, _ = postJSON(t, srv, "/wallet/cash-out", map[string]any{
		"playerId": "alice", "tableId": "t1", "chipAmount": 100,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Cash-out never lazily creates wallets.
	resp, _ = postJSON(t, srv, "/wallet/cash-out", map[string]any{
		"playerId": "ghost", "tableId": "t1", "chipAmount": 100,
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransferEndpoint(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)
	initPlayer(t, srv, "bob", 100)

	resp, body := postJSON(t, srv, "/wallet/transfer", map[string]any{
		"fromPlayerId": "alice",
		"toPlayerId":   "bob",
		"amount":       250,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, dataField(t, body, "transferId"))

	resp, body = getJSON(t, srv, "/wallet?playerId=bob")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(350), dataField(t, body, "available"))

	// Self-transfer is rejected.
	resp, _ = postJSON(t, srv, "/wallet/transfer", map[string]any{
		"fromPlayerId": "alice", "toPlayerId": "alice", "amount": 10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProcessWinningsAndRakeEndpoints(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "winner", 1_000)
	initPlayer(t, srv, "loser", 1_000)

	resp, body := postJSON(t, srv, "/wallet/process-winnings", map[string]any{
		"tableId": "t1",
		"handId":  "h1",
		"winners": []map[string]any{{"playerId": "winner", "amount": 200}},
		"losers":  []map[string]any{{"playerId": "loser", "amount": 200}},
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	balances := dataField(t, body, "balances").(map[string]any)
	assert.Equal(t, float64(1_200), balances["winner"])
	assert.Equal(t, float64(800), balances["loser"])

	resp, body = postJSON(t, srv, "/wallet/collect-rake", map[string]any{
		"tableId":        "t1",
		"handId":         "h2",
		"potAmount":      100,
		"rakePercentage": 5,
		"maxRake":        10,
		"winnerPlayerId": "winner",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), dataField(t, body, "rake"))
	assert.Equal(t, float64(95), dataField(t, body, "netPot"))

	resp, body = getJSON(t, srv, "/wallet/rake-stats?period=daily")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), dataField(t, body, "totalRake"))
	assert.Equal(t, float64(1), dataField(t, body, "handCount"))

	resp, _ = getJSON(t, srv, "/wallet/rake-stats?period=weekly")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRollbackBuyInEndpoint(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)

	resp, _ := postJSON(t, srv, "/wallet/buy-in", map[string]any{
		"playerId": "alice", "tableId": "t1", "amount": 300,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := postJSON(t, srv, "/wallet/rollback-buy-in", map[string]any{
		"playerId": "alice", "tableId": "t1", "amount": 300, "reason": "table crashed",
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1_000), dataField(t, body, "available"))

	// Unknown wallet rolls back to 404.
	resp, _ = postJSON(t, srv, "/wallet/rollback-buy-in", map[string]any{
		"playerId": "ghost", "tableId": "t1", "amount": 300,
	}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransactionsQueryParams(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)

	for i := 0; i < 3; i++ {
		resp, _ := postJSON(t, srv, "/wallet/deposit", map[string]any{
			"playerId": "alice", "amount": 10,
		}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := getJSON(t, srv, "/wallet/transactions?playerId=alice&kind=deposit&limit=2")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), dataField(t, body, "count"))
	txs := dataField(t, body, "transactions").([]any)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, "deposit", tx.(map[string]any)["kind"])
	}

	resp, _ = getJSON(t, srv, "/wallet/transactions?kind=bogus")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = getJSON(t, srv, "/wallet/transactions?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatsAndHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	initPlayer(t, srv, "alice", 1_000)

	resp, body := getJSON(t, srv, "/wallet/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), dataField(t, body, "totalWallets"))

	resp, body = getJSON(t, srv, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// Health is a bare report, not an envelope.
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["instanceId"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, body := getJSON(t, srv, "/wallet/deposit")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, false, body["success"])

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/wallet", nil)
	require.NoError(t, err)
	resp2, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestMalformedJSONBody(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Post(srv.URL+"/wallet/deposit", "application/json",
		bytes.NewReader([]byte(`{"playerId":`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRequestIDHeaderPropagation(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))

	resp2, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.NotEmpty(t, resp2.Header.Get("X-Request-ID"))
}

func TestLazyWalletCreationOnDeposit(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/wallet/deposit", map[string]any{
		"playerId": "newcomer", "amount": 50,
	}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	wallet := dataField(t, body, "wallet").(map[string]any)
	// Default opening balance plus the deposit.
	assert.Equal(t, float64(10_050), wallet["balance"])
}

func TestConcurrentSameKeyRequestsExecuteOnce(t *testing.T) {
	// The slow store keeps the first flight inside its snapshot write while
	// the duplicates arrive, so any check-then-act gap would let them all
	// execute. Single-flighting must hold them until the first result lands.
	srv := newServerWith(t, &slowStore{MemoryStore: store.NewMemoryStore(), delay: 20 * time.Millisecond}, nil)
	initPlayer(t, srv, "alice", 10_000)

	const n = 4
	type outcome struct {
		status   int
		replayed bool
	}
	results := make(chan outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			resp, _ := postJSON(t, srv, "/wallet/deposit", map[string]any{
				"playerId": "alice", "amount": 100,
			}, map[string]string{IdempotencyKeyHeader: "dep-burst"})
			results <- outcome{status: resp.StatusCode, replayed: resp.Header.Get(ReplayedHeader) == "true"}
		}()
	}
	executed := 0
	for i := 0; i < n; i++ {
		o := <-results
		assert.Equal(t, http.StatusOK, o.status)
		if !o.replayed {
			executed++
		}
	}
	assert.Equal(t, 1, executed, "exactly one request must run the deposit")

	// The deposit applied once.
	resp, body := getJSON(t, srv, "/wallet?playerId=alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10_100), dataField(t, body, "available"))

	// And the cache keeps serving replays.
	resp2, _ := postJSON(t, srv, "/wallet/deposit", map[string]any{
		"playerId": "alice", "amount": 100,
	}, map[string]string{IdempotencyKeyHeader: "dep-burst"})
	assert.Equal(t, "true", resp2.Header.Get(ReplayedHeader))
}

func TestHealthDegradedWhenStoreUnreachable(t *testing.T) {
	srv := newServerWith(t, store.NewMemoryStore(), func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	resp, body := getJSON(t, srv, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "degraded", body["status"])
}

func TestResponsesCarryJSONContentType(t *testing.T) {
	srv := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	// Error paths too: 405 goes through the same middleware chain.
	resp, err = srv.Client().Get(srv.URL + "/wallet/deposit")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestRecoveryRespondsJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallet/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}
