package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finbot/internal/chatbot"
	"finbot/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForError maps the error taxonomy onto HTTP statuses: validation
// problems are the caller's fault, model-backend failures are a bad
// gateway, everything else (storage included) is a server error.
func statusForError(err error) int {
	switch {
	case errors.Is(err, chatbot.ErrEmptyInput),
		errors.Is(err, core.ErrEmptyUserID),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidRole),
		errors.Is(err, core.ErrMissingDeleteCriteria),
		errors.Is(err, core.ErrNoEditFields):
		return http.StatusBadRequest
	case errors.Is(err, chatbot.ErrUpstream),
		errors.Is(err, chatbot.ErrTooManyToolRounds):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
