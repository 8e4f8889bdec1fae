package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/teacherevaluation/internal/models"
)

// maxRequestBytes bounds the JSON bodies the functions accept.
const maxRequestBytes = 1 << 20

// DecodeRequest reads a JSON body into v. Failures are bad requests.
func DecodeRequest(r *http.Request, v any) error {
	if r.Method != http.MethodPost {
		return badRequestError(fmt.Errorf("method %s not allowed", r.Method))
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(v); err != nil {
		return badRequestError(fmt.Errorf("could not decode request body: %w", err))
	}
	return nil
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// WriteError renders err as an ErrorResponse. Only the user-facing message
// leaves the process; diagnostics go to the log.
func WriteError(w http.ResponseWriter, err error) {
	evalErr := AsEvaluationError(err)
	status := evalErr.Status()
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "kind", evalErr.Kind, "error", evalErr)
	} else {
		slog.Warn("Request rejected", "kind", evalErr.Kind, "error", evalErr)
	}
	WriteJSON(w, status, models.ErrorResponse{
		Error:   string(evalErr.Kind),
		Message: evalErr.Message,
		Status:  status,
	})
}
