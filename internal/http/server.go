// Package http exposes the chatbot and its stores over a JSON API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"finbot/internal/core"
	"finbot/internal/middleware/trace"
)

// Chatbot runs one conversational turn.
type Chatbot interface {
	Chat(ctx context.Context, userID, userInput string) (string, error)
}

// MemoryReader exposes stored conversation history.
type MemoryReader interface {
	FetchMemories(ctx context.Context, userID string) ([]core.MemoryEntry, error)
}

// ExpenseReader exposes stored expenses for the read endpoints.
type ExpenseReader interface {
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	DailySpending(ctx context.Context, userID string) ([]core.DayTotal, error)
}

type Server struct {
	http.Server
	chatbot  Chatbot
	memories MemoryReader
	expenses ExpenseReader
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, bot Chatbot, memories MemoryReader, expenses ExpenseReader, allowedOrigins []string) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      2 * time.Minute, // chat turns wait on the model
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
			ReadHeaderTimeout: 5 * time.Second,
		},
		chatbot:  bot,
		memories: memories,
		expenses: expenses,
	}

	r := chi.NewRouter()
	r.Use(trace.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: !wildcardOrigins(allowedOrigins),
		MaxAge:           300,
	}))

	r.Get("/", s.handleWelcome)
	r.Get("/health", s.handleHealth)
	r.Post("/chatbot/{user_id}", s.handleChat)
	r.Get("/memory/{user_id}", s.handleMemory)
	r.Get("/expenses", s.handleExpenses)
	r.Get("/visuals/daily_spending/{user_id}", s.handleDailySpendingChart)

	s.Server.Handler = r
	return s
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.Server.Handler
}

func wildcardOrigins(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
