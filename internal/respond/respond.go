// Package respond writes JSON responses for the HTTP handlers.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"quicktasker/gig-service/internal/apperr"
)

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"error": msg}.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, map[string]string{"error": msg})
}

// Err maps err through apperr.Status. Domain errors carry a user-facing
// message and are returned as is. Anything else is logged and answered with
// fallback plus the raw backend message under "detail".
func Err(w http.ResponseWriter, logger *slog.Logger, err error, fallback string) {
	code := apperr.Status(err)

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body := map[string]any{"error": ve.Msg}
		if len(ve.Fields) > 0 {
			body["errors"] = ve.Fields
		}
		JSON(w, code, body)
		return
	}

	if code == http.StatusInternalServerError {
		logger.Error(fallback, "error", err.Error())
		msg := fallback
		if errors.Is(err, apperr.ErrPartialWrite) {
			msg = apperr.ErrPartialWrite.Error()
		}
		JSON(w, code, map[string]string{"error": msg, "detail": err.Error()})
		return
	}

	var ce *apperr.ConflictError
	if errors.As(err, &ce) {
		Error(w, code, ce.Msg)
		return
	}
	Error(w, code, http.StatusText(code))
}

// Decode reads a JSON body into v.
func Decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Invalid("Could not decode request body")
	}
	return nil
}
