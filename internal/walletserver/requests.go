package walletserver

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/riverfelt/platform/internal/ledger"
)

// Request bodies for the mutating endpoints. Validation here covers shape
// only; policy checks (funds, limits, seat state) are re-evaluated by the
// engine under the wallet locks.

type initializeRequest struct {
	PlayerID       string `json:"playerId"`
	InitialBalance *int64 `json:"initialBalance,omitempty"`
}

type buyInRequest struct {
	PlayerID string `json:"playerId"`
	TableID  string `json:"tableId"`
	Amount   int64  `json:"amount"`
}

type cashOutRequest struct {
	PlayerID   string `json:"playerId"`
	TableID    string `json:"tableId"`
	ChipAmount int64  `json:"chipAmount"`
}

type processWinningsRequest struct {
	TableID string                `json:"tableId"`
	HandID  string                `json:"handId"`
	Winners []ledger.PlayerAmount `json:"winners"`
	Losers  []ledger.PlayerAmount `json:"losers"`
}

type depositRequest struct {
	PlayerID    string `json:"playerId"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

type withdrawRequest struct {
	PlayerID    string `json:"playerId"`
	Amount      int64  `json:"amount"`
	Description string `json:"description,omitempty"`
}

type transferRequest struct {
	FromPlayerID string `json:"fromPlayerId"`
	ToPlayerID   string `json:"toPlayerId"`
	Amount       int64  `json:"amount"`
	Description  string `json:"description,omitempty"`
}

type rollbackBuyInRequest struct {
	PlayerID string `json:"playerId"`
	TableID  string `json:"tableId"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason,omitempty"`
}

type rollbackHandRequest struct {
	TableID string                `json:"tableId"`
	HandID  string                `json:"handId"`
	Players []ledger.PlayerRefund `json:"players"`
	Reason  string                `json:"reason,omitempty"`
}

type collectRakeRequest struct {
	TableID        string               `json:"tableId"`
	HandID         string               `json:"handId"`
	PotAmount      int64                `json:"potAmount"`
	RakePercentage float64              `json:"rakePercentage"`
	MaxRake        int64                `json:"maxRake"`
	WinnerPlayerID string               `json:"winnerPlayerId,omitempty"`
	Winners        []ledger.WinnerShare `json:"winners,omitempty"`
}

// decodeJSON decodes the request body into dst. Unknown fields are tolerated
// so older callers keep working across rollouts.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
