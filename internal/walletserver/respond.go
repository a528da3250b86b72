package walletserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/riverfelt/platform/internal/domain"
)

// envelope is the standard response shape: {success, data?, error?}.
// Buy-in keeps its legacy flat shape for backward compatibility.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// buyInResponse is the legacy flat buy-in body.
type buyInResponse struct {
	Success       bool   `json:"success"`
	ChipCount     int64  `json:"chipCount"`
	WalletBalance int64  `json:"walletBalance"`
	Error         string `json:"error,omitempty"`
}

// encode serializes a payload once; the same bytes go to the client and, for
// idempotent requests, into the replay cache so replays match byte-for-byte.
func encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// statusAndPayload maps an error to its HTTP status and envelope.
func statusAndPayload(err error) (int, envelope) {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr.Status, envelope{Success: false, Error: appErr.Message}
	}
	return http.StatusInternalServerError, envelope{Success: false, Error: "internal server error"}
}

// writeBody writes pre-serialized JSON with the given status.
func writeBody(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeJSON serializes and writes a payload.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := encode(payload)
	if err != nil {
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeBody(w, status, body)
}

// writeError maps and writes a domain error.
func writeError(w http.ResponseWriter, err error) {
	status, payload := statusAndPayload(err)
	writeJSON(w, status, payload)
}
