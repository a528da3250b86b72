package walletserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/riverfelt/platform/internal/domain"
	"github.com/riverfelt/platform/internal/ledger"
)

// IdempotencyKeyHeader is the client-supplied replay token.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader marks a response served from the replay cache.
const ReplayedHeader = "X-Idempotent-Replayed"

// StoreCheck reports snapshot-backend reachability for the liveness probe.
type StoreCheck func(ctx context.Context) error

// Handler exposes the ledger engine's operations over HTTP/JSON.
type Handler struct {
	eng        *ledger.Engine
	storeCheck StoreCheck
	logger     *slog.Logger

	// inflight holds one channel per idempotency key currently executing;
	// the channel is closed once the result is in the replay cache.
	inflight sync.Map
}

// NewHandler creates the HTTP handler set. storeCheck may be nil when the
// snapshot backend has no liveness probe of its own.
func NewHandler(eng *ledger.Engine, storeCheck StoreCheck, logger *slog.Logger) *Handler {
	return &Handler{eng: eng, storeCheck: storeCheck, logger: logger}
}

// mutate runs fn with idempotent replay protection. Requests sharing an
// Idempotency-Key are single-flighted: the first registers the key and runs
// fn; concurrent duplicates park on the in-flight channel and replay the
// cached bytes once the first result lands, so the operation's side effects
// happen exactly once even while the snapshot write is still in progress.
// Bodies are not compared, so the contract is first request wins; non-5xx
// responses are cached after the operation commits.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func() (int, any)) {
	key := r.Header.Get(IdempotencyKeyHeader)
	if key == "" {
		status, payload := fn()
		writeJSON(w, status, payload)
		return
	}

	for {
		if rec, ok := h.eng.ReplayLookup(key); ok {
			w.Header().Set(ReplayedHeader, "true")
			writeBody(w, rec.Status, rec.Body)
			return
		}

		done := make(chan struct{})
		if prev, raced := h.inflight.LoadOrStore(key, done); raced {
			select {
			case <-prev.(chan struct{}):
				// First flight finished; loop to replay its cached result
				// (or run fn ourselves if it was a 5xx and nothing cached).
				continue
			case <-r.Context().Done():
				writeError(w, domain.ErrInternal("request cancelled", r.Context().Err()))
				return
			}
		}

		var (
			status int
			body   []byte
			encErr error
		)
		func() {
			defer func() {
				h.inflight.Delete(key)
				close(done)
			}()
			var payload any
			status, payload = fn()
			body, encErr = encode(payload)
			if encErr == nil && status < 500 {
				h.eng.StoreReplay(r.Context(), key, status, body)
			}
		}()
		if encErr != nil {
			writeError(w, domain.ErrInternal("encode response", encErr))
			return
		}
		writeBody(w, status, body)
		return
	}
}

// Initialize handles POST /wallet/initialize.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		view, err := h.eng.Initialize(r.Context(), ledger.InitializeParams{
			PlayerID:       req.PlayerID,
			InitialBalance: req.InitialBalance,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: view}
	})
}

// BuyIn handles POST /wallet/buy-in with the legacy flat response shape.
func (h *Handler) BuyIn(w http.ResponseWriter, r *http.Request) {
	var req buyInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		res, err := h.eng.BuyIn(r.Context(), ledger.BuyInParams{
			PlayerID: req.PlayerID,
			TableID:  req.TableID,
			Amount:   req.Amount,
		})
		if err != nil {
			status, payload := statusAndPayload(err)
			return status, buyInResponse{Success: false, Error: payload.Error}
		}
		return http.StatusOK, buyInResponse{
			Success:       true,
			ChipCount:     res.ChipCount,
			WalletBalance: res.WalletBalance,
		}
	})
}

// CashOut handles POST /wallet/cash-out.
func (h *Handler) CashOut(w http.ResponseWriter, r *http.Request) {
	var req cashOutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		res, err := h.eng.CashOut(r.Context(), ledger.CashOutParams{
			PlayerID:   req.PlayerID,
			TableID:    req.TableID,
			ChipAmount: req.ChipAmount,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: res}
	})
}

// ProcessWinnings handles POST /wallet/process-winnings.
func (h *Handler) ProcessWinnings(w http.ResponseWriter, r *http.Request) {
	var req processWinningsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		res, err := h.eng.ProcessWinnings(r.Context(), ledger.ProcessWinningsParams{
			TableID: req.TableID,
			HandID:  req.HandID,
			Winners: req.Winners,
			Losers:  req.Losers,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: res}
	})
}

// Deposit handles POST /wallet/deposit.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		view, err := h.eng.Deposit(r.Context(), ledger.DepositParams{
			PlayerID:    req.PlayerID,
			Amount:      req.Amount,
			Description: req.Description,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: view}
	})
}

// Withdraw handles POST /wallet/withdraw.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		view, err := h.eng.Withdraw(r.Context(), ledger.WithdrawParams{
			PlayerID:    req.PlayerID,
			Amount:      req.Amount,
			Description: req.Description,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: view}
	})
}

// Transfer handles POST /wallet/transfer.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		res, err := h.eng.Transfer(r.Context(), ledger.TransferParams{
			FromPlayerID: req.FromPlayerID,
			ToPlayerID:   req.ToPlayerID,
			Amount:       req.Amount,
			Description:  req.Description,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: res}
	})
}

// RollbackBuyIn handles POST /wallet/rollback-buy-in.
func (h *Handler) RollbackBuyIn(w http.ResponseWriter, r *http.Request) {
	var req rollbackBuyInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		view, err := h.eng.RollbackBuyIn(r.Context(), ledger.RollbackBuyInParams{
			PlayerID: req.PlayerID,
			TableID:  req.TableID,
			Amount:   req.Amount,
			Reason:   req.Reason,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: view}
	})
}

// RollbackHand handles POST /wallet/rollback-hand.
func (h *Handler) RollbackHand(w http.ResponseWriter, r *http.Request) {
	var req rollbackHandRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		res, err := h.eng.RollbackHand(r.Context(), ledger.RollbackHandParams{
			TableID: req.TableID,
			HandID:  req.HandID,
			Players: req.Players,
			Reason:  req.Reason,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: res}
	})
}

// CollectRake handles POST /wallet/collect-rake.
func (h *Handler) CollectRake(w http.ResponseWriter, r *http.Request) {
	var req collectRakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, domain.ErrValidation(err.Error()))
		return
	}
	h.mutate(w, r, func() (int, any) {
		res, err := h.eng.CollectRake(r.Context(), ledger.CollectRakeParams{
			TableID:        req.TableID,
			HandID:         req.HandID,
			PotAmount:      req.PotAmount,
			RakePercentage: req.RakePercentage,
			MaxRake:        req.MaxRake,
			WinnerPlayerID: req.WinnerPlayerID,
			Winners:        req.Winners,
		})
		if err != nil {
			return statusAndPayloadAny(err)
		}
		return http.StatusOK, envelope{Success: true, Data: res}
	})
}

// GetWallet handles GET /wallet?playerId=X.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	view, err := h.eng.GetWallet(r.URL.Query().Get("playerId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: view})
}

// GetTransactions handles GET /wallet/transactions with query filters.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ledger.TransactionFilter{
		PlayerID: q.Get("playerId"),
		Kind:     domain.EntryKind(q.Get("kind")),
		TableID:  q.Get("tableId"),
		HandID:   q.Get("handId"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := parsePositiveInt(limitStr)
		if err != nil {
			writeError(w, domain.ErrValidation("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	entries, err := h.eng.ListTransactions(filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"transactions": entries,
		"count":        len(entries),
	}})
}

// GetStats handles GET /wallet/stats.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: h.eng.Stats()})
}

// GetRakeStats handles GET /wallet/rake-stats?period=daily|monthly|yearly.
func (h *Handler) GetRakeStats(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "daily"
	}
	stats, err := h.eng.GetRakeStats(period)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: stats})
}

// Health handles GET /health. The liveness report bypasses the envelope.
// When the snapshot backend carries its own probe, an unreachable store
// degrades the report to 503: the shard cannot commit mutations without it.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	report := h.eng.Health()
	if h.storeCheck != nil {
		if err := h.storeCheck(r.Context()); err != nil {
			h.logger.Error("snapshot store unreachable", "error", err)
			report.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, report)
			return
		}
	}
	writeJSON(w, http.StatusOK, report)
}

// statusAndPayloadAny adapts statusAndPayload to the mutate callback shape.
func statusAndPayloadAny(err error) (int, any) {
	status, payload := statusAndPayload(err)
	return status, payload
}

func parsePositiveInt(s string) (int, error) {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("not a number: %q", s)
		}
		n = n*10 + int(c-'0')
		if n > 1<<30 {
			return 0, fmt.Errorf("out of range: %q", s)
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("must be positive: %q", s)
	}
	return n, nil
}
