package chatbot

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finbot/internal/core"
	"finbot/internal/llm"
	"finbot/internal/storage"
)

// fakeClient replays a scripted sequence of responses and records every
// request it saw.
type fakeClient struct {
	script   []llm.Response
	err      error
	requests [][]llm.Message
	tools    [][]llm.Tool
}

func (f *fakeClient) GenerateWithTools(ctx context.Context, messages []llm.Message, tools []llm.Tool) (llm.Response, error) {
	f.requests = append(f.requests, messages)
	f.tools = append(f.tools, tools)
	if f.err != nil {
		return llm.Response{}, f.err
	}
	if len(f.script) == 0 {
		return llm.Response{Content: "default reply"}, nil
	}
	resp := f.script[0]
	f.script = f.script[1:]
	return resp, nil
}

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "chatbot_test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func TestChatPlainReply(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.AppendMemory(ctx, "u1", core.RoleUser, "earlier question"); err != nil {
		t.Fatalf("seed memory: %v", err)
	}
	if _, err := repo.AppendMemory(ctx, "u1", core.RoleAssistant, "earlier answer"); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	fake := &fakeClient{script: []llm.Response{{Content: "hello there"}}}
	svc := New(fake, repo, repo, WithClock(fixedClock("2024-06-15")))

	reply, err := svc.Chat(ctx, "u1", "hi")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "hello there" {
		t.Fatalf("reply = %q", reply)
	}

	// One model call: system + 2 history + new message.
	if len(fake.requests) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(fake.requests))
	}
	msgs := fake.requests[0]
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "2024-06-15") {
		t.Fatalf("system prompt missing today's date: %q", msgs[0].Content)
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Fatalf("history not replayed in order: %+v", msgs[1:3])
	}
	if msgs[3].Role != llm.RoleUser || msgs[3].Content != "hi" {
		t.Fatalf("user message wrong: %+v", msgs[3])
	}
	if len(fake.tools[0]) == 0 {
		t.Fatal("tools not offered to the model")
	}

	// Both sides of the turn persisted, in order.
	entries, err := repo.FetchMemories(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch memories: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 memory entries, got %d", len(entries))
	}
	if entries[2].Role != core.RoleUser || entries[2].Text != "hi" {
		t.Fatalf("user turn not persisted: %+v", entries[2])
	}
	if entries[3].Role != core.RoleAssistant || entries[3].Text != "hello there" {
		t.Fatalf("assistant turn not persisted: %+v", entries[3])
	}
}

func TestChatToolCallRound(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fake := &fakeClient{script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "insert_expense",
			Arguments: `{"date":"2024-06-01","category":"food","amount":"250","description":"lunch"}`,
		}}},
		{Content: "Recorded your 250 lunch."},
	}}
	svc := New(fake, repo, repo, WithClock(fixedClock("2024-06-15")))

	reply, err := svc.Chat(ctx, "u1", "I spent 250 on lunch on June 1st")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Recorded your 250 lunch." {
		t.Fatalf("reply = %q", reply)
	}

	// The expense landed in the store, scoped to the right user.
	expenses, err := repo.ListExpenses(ctx, "u1")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(expenses) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(expenses))
	}
	e := expenses[0]
	if e.Date.String() != "2024-06-01" || e.Category != "food" || e.Amount.Cents != 25000 {
		t.Fatalf("wrong expense: %+v", e)
	}

	// Second model call saw the assistant tool-call message and its result.
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(fake.requests))
	}
	second := fake.requests[1]
	toolMsg := second[len(second)-1]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Fatalf("tool result not folded back: %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "inserted_id") {
		t.Fatalf("tool result payload wrong: %q", toolMsg.Content)
	}
	assistantMsg := second[len(second)-2]
	if assistantMsg.Role != llm.RoleAssistant || len(assistantMsg.ToolCalls) != 1 {
		t.Fatalf("assistant tool-call message missing: %+v", assistantMsg)
	}

	// Tool traffic never enters conversation memory.
	entries, err := repo.FetchMemories(ctx, "u1")
	if err != nil {
		t.Fatalf("fetch memories: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 memory entries, got %d", len(entries))
	}
}

func TestChatUpstreamFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fake := &fakeClient{err: errors.New("connection refused")}
	svc := New(fake, repo, repo)

	_, err := svc.Chat(ctx, "u1", "hello")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}

	// The user's utterance survives; no assistant reply is recorded.
	entries, ferr := repo.FetchMemories(ctx, "u1")
	if ferr != nil {
		t.Fatalf("fetch memories: %v", ferr)
	}
	if len(entries) != 1 || entries[0].Role != core.RoleUser {
		t.Fatalf("expected only the user message persisted, got %+v", entries)
	}
}

func TestChatTodayRecomputedPerTurn(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	day := "2024-06-15"
	clock := func() time.Time {
		t, _ := time.Parse(core.DateLayout, day)
		return t
	}
	fake := &fakeClient{script: []llm.Response{{Content: "ok"}, {Content: "ok"}}}
	svc := New(fake, repo, repo, WithClock(clock))

	if _, err := svc.Chat(ctx, "u1", "first"); err != nil {
		t.Fatalf("first chat: %v", err)
	}
	day = "2024-06-16" // midnight passed
	if _, err := svc.Chat(ctx, "u1", "second"); err != nil {
		t.Fatalf("second chat: %v", err)
	}

	if !strings.Contains(fake.requests[0][0].Content, "2024-06-15") {
		t.Fatalf("first prompt has wrong date: %q", fake.requests[0][0].Content)
	}
	if !strings.Contains(fake.requests[1][0].Content, "2024-06-16") {
		t.Fatalf("second prompt not recomputed: %q", fake.requests[1][0].Content)
	}
}

func TestChatUnknownToolReportedToModel(t *testing.T) {
	repo := newTestRepo(t)

	fake := &fakeClient{script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "transfer_funds", Arguments: `{}`}}},
		{Content: "Sorry, I cannot do that."},
	}}
	svc := New(fake, repo, repo)

	reply, err := svc.Chat(context.Background(), "u1", "move my money")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Sorry, I cannot do that." {
		t.Fatalf("reply = %q", reply)
	}
	second := fake.requests[1]
	toolMsg := second[len(second)-1]
	if !strings.Contains(toolMsg.Content, "unknown tool") {
		t.Fatalf("model not told about unknown tool: %q", toolMsg.Content)
	}
}

func TestChatToolRoundBound(t *testing.T) {
	repo := newTestRepo(t)

	// The model never stops asking for tools.
	fake := &fakeClient{script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "fetch_expenses", Arguments: `{}`}}},
		{ToolCalls: []llm.ToolCall{{ID: "c2", Name: "fetch_expenses", Arguments: `{}`}}},
		{ToolCalls: []llm.ToolCall{{ID: "c3", Name: "fetch_expenses", Arguments: `{}`}}},
	}}
	svc := New(fake, repo, repo, WithMaxToolRounds(2))

	_, err := svc.Chat(context.Background(), "u1", "list everything forever")
	if !errors.Is(err, ErrTooManyToolRounds) {
		t.Fatalf("expected ErrTooManyToolRounds, got %v", err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(fake.requests))
	}
}

func TestChatInputValidation(t *testing.T) {
	repo := newTestRepo(t)
	svc := New(&fakeClient{}, repo, repo)

	if _, err := svc.Chat(context.Background(), "u1", "   "); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if _, err := svc.Chat(context.Background(), "", "hello"); !errors.Is(err, core.ErrEmptyUserID) {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestChatMultiStepToolChain(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fake := &fakeClient{script: []llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:        "c1",
			Name:      "insert_expense",
			Arguments: `{"date":"2024-06-01","category":"food","amount":250,"description":"lunch"}`,
		}}},
		{ToolCalls: []llm.ToolCall{{
			ID:        "c2",
			Name:      "fetch_total_expenses_between_dates",
			Arguments: `{"start_date":"2024-06-01","end_date":"2024-06-30"}`,
		}}},
		{Content: "Saved. You spent 250.00 in June."},
	}}
	svc := New(fake, repo, repo, WithMaxToolRounds(4))

	reply, err := svc.Chat(ctx, "u1", "add 250 lunch on June 1 and tell me my June total")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if reply != "Saved. You spent 250.00 in June." {
		t.Fatalf("reply = %q", reply)
	}

	third := fake.requests[2]
	totalMsg := third[len(third)-1]
	if !strings.Contains(totalMsg.Content, `"total":"250.00"`) {
		t.Fatalf("total result wrong: %q", totalMsg.Content)
	}
}
