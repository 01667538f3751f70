package api

import (
	"encoding/json"
	"net/http"
)

// Error is the body of every non-2xx response.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// respond writes v as JSON with the given status.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the client may already be gone
	json.NewEncoder(w).Encode(v)
}

// fail writes an Error carrying the request's ID. The message is the
// standard status text.
func fail(w http.ResponseWriter, r *http.Request, status int, code string) {
	id, _ := r.Context().Value(ctxKeyRequestID).(string)
	respond(w, status, Error{
		Code:      code,
		Message:   http.StatusText(status),
		RequestID: id,
	})
}
