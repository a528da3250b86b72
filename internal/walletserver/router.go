package walletserver

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/riverfelt/platform/internal/domain"
	"github.com/riverfelt/platform/internal/ledger"
)

// NewRouter builds the shard's HTTP route table. storeCheck may be nil.
func NewRouter(eng *ledger.Engine, storeCheck StoreCheck, logger *slog.Logger) http.Handler {
	h := NewHandler(eng, storeCheck, logger)

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(logger))
	r.Use(Recovery(logger))
	r.Use(JSONContentType)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, domain.ErrMethodNotAllowed(r.Method))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, domain.ErrNotFound("route", r.URL.Path))
	})

	r.Get("/health", h.Health)

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", h.GetWallet)
		r.Post("/initialize", h.Initialize)
		r.Post("/buy-in", h.BuyIn)
		r.Post("/cash-out", h.CashOut)
		r.Post("/process-winnings", h.ProcessWinnings)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Post("/transfer", h.Transfer)
		r.Post("/rollback-buy-in", h.RollbackBuyIn)
		r.Post("/rollback-hand", h.RollbackHand)
		r.Post("/collect-rake", h.CollectRake)
		r.Get("/transactions", h.GetTransactions)
		r.Get("/stats", h.GetStats)
		r.Get("/rake-stats", h.GetRakeStats)
	})

	return r
}
