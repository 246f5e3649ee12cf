// Package chatbot implements the conversational tool-calling loop: it
// replays a user's stored history to the language model, lets the model
// drive the expense tools, and persists both sides of the turn.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"finbot/internal/core"
	"finbot/internal/llm"
)

var (
	// ErrUpstream marks a turn killed by the model backend.
	ErrUpstream = errors.New("model backend unavailable")
	// ErrTooManyToolRounds marks a turn that exceeded the tool-chain bound.
	ErrTooManyToolRounds = errors.New("too many tool rounds in one turn")
	// ErrEmptyInput rejects a turn with nothing to say.
	ErrEmptyInput = errors.New("empty user input")
)

// ExpenseStore is the slice of the repository the tools operate on.
type ExpenseStore interface {
	InsertExpense(ctx context.Context, e core.Expense) (int64, error)
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	ListExpensesByCategory(ctx context.Context, userID, category string) ([]core.Expense, error)
	SumBetween(ctx context.Context, userID string, start, end core.Date) (core.Money, error)
	ListBetween(ctx context.Context, userID string, start, end core.Date) ([]core.Expense, error)
	HighestSpendingDay(ctx context.Context, userID string) (*core.DayTotal, error)
	EditExpense(ctx context.Context, userID string, id int64, patch core.ExpensePatch) (bool, error)
	DeleteExpenses(ctx context.Context, userID string, criteria core.DeleteCriteria) (int64, error)
}

// MemoryStore is the conversation log the loop reads and appends to.
type MemoryStore interface {
	AppendMemory(ctx context.Context, userID string, role core.Role, text string) (int64, error)
	FetchMemories(ctx context.Context, userID string) ([]core.MemoryEntry, error)
}

// Service runs the tool-calling loop. It holds no per-user state; every
// turn is rebuilt from the stores.
type Service struct {
	llm       llm.Client
	expenses  ExpenseStore
	memory    MemoryStore
	maxRounds int
	timeout   time.Duration
	location  *time.Location
	now       func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the reference clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the timezone "today" is computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.location = loc
	}
}

// WithMaxToolRounds bounds how many model round-trips one turn may take.
func WithMaxToolRounds(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRounds = n
		}
	}
}

// WithTimeout bounds each turn's model interaction.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(client llm.Client, expenses ExpenseStore, memory MemoryStore, opts ...Option) *Service {
	s := &Service{
		llm:       client,
		expenses:  expenses,
		memory:    memory,
		maxRounds: 4,
		timeout:   60 * time.Second,
		location:  time.UTC,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Chat executes one turn for the user and returns the assistant's reply.
//
// The user's message is persisted before the model is invoked, so a failed
// turn still keeps the utterance. The assistant's reply is persisted only
// once the model produced one; a backend failure writes nothing for the
// assistant side.
func (s *Service) Chat(ctx context.Context, userID, userInput string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", core.ErrEmptyUserID
	}
	if strings.TrimSpace(userInput) == "" {
		return "", ErrEmptyInput
	}

	history, err := s.memory.FetchMemories(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}

	today := s.now().In(s.location).Format(core.DateLayout)
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(today, userID)})
	for _, entry := range history {
		messages = append(messages, llm.Message{Role: string(entry.Role), Content: entry.Text})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userInput})

	if _, err := s.memory.AppendMemory(ctx, userID, core.RoleUser, userInput); err != nil {
		return "", fmt.Errorf("persist user message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tools := toolDefinitions()
	for round := 0; round < s.maxRounds; round++ {
		resp, err := s.llm.GenerateWithTools(ctx, messages, tools)
		if err != nil {
			return "", fmt.Errorf("invoke model: %w: %w", ErrUpstream, err)
		}

		if !resp.HasToolCalls() {
			if _, err := s.memory.AppendMemory(ctx, userID, core.RoleAssistant, resp.Content); err != nil {
				return "", fmt.Errorf("persist assistant reply: %w", err)
			}
			slog.InfoContext(ctx, "Chat turn completed",
				"user_id", userID,
				"rounds", round+1,
				"total_tokens", resp.TotalTokens)
			return resp.Content, nil
		}

		// Fold every requested tool result back before the next round.
		messages = append(messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			slog.InfoContext(ctx, "Dispatching tool call",
				"user_id", userID,
				"tool", call.Name,
				"round", round+1)
			result, err := s.dispatchTool(ctx, userID, call)
			if err != nil {
				return "", fmt.Errorf("tool %s: %w", call.Name, err)
			}
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("%w (limit %d)", ErrTooManyToolRounds, s.maxRounds)
}
