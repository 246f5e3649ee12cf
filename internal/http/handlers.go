package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"finbot/internal/visuals"
)

type chatRequest struct {
	UserInput string `json:"user_input"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type memoryJSON struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type expenseJSON struct {
	ID          int64  `json:"id"`
	UserID      string `json:"user_id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the Personal Finance Chatbot API!",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.UserInput) == "" {
		writeError(w, http.StatusBadRequest, "user_input is required")
		return
	}

	reply, err := s.chatbot.Chat(r.Context(), userID, req.UserInput)
	if err != nil {
		status := statusForError(err)
		slog.ErrorContext(r.Context(), "Chat turn failed",
			"error", err,
			"user_id", userID,
			"status", status)
		writeError(w, status, "chat turn failed")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	entries, err := s.memories.FetchMemories(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to fetch memories", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to fetch memories")
		return
	}

	out := make([]memoryJSON, len(entries))
	for i, e := range entries {
		out[i] = memoryJSON{
			ID:        e.ID,
			UserID:    e.UserID,
			Role:      string(e.Role),
			Text:      e.Text,
			Timestamp: e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": out})
}

func (s *Server) handleExpenses(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	expenses, err := s.expenses.ListExpenses(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list expenses", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}

	out := make([]expenseJSON, len(expenses))
	for i, e := range expenses {
		out[i] = expenseJSON{
			ID:          e.ID,
			UserID:      e.UserID,
			Date:        e.Date.String(),
			Category:    e.Category,
			Amount:      e.Amount.String(),
			Description: e.Description,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func (s *Server) handleDailySpendingChart(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	totals, err := s.expenses.DailySpending(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load daily spending", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to load daily spending")
		return
	}
	if len(totals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	// Render to a buffer first so a chart failure can still produce a
	// clean error response.
	var buf bytes.Buffer
	if err := visuals.RenderDailySpending(&buf, totals); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render chart", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to render chart")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write chart response", "error", err)
	}
}
