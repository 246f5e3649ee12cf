package llm

import "context"

// Message roles as the chat-completion API expects them.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry of a chat transcript. Assistant messages may carry
// tool calls; tool messages carry the result of one call and reference it
// by ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Tool describes a function the model may invoke. Parameters is a JSON
// schema object.
type Tool struct {
	Type     string
	Function Function
}

type Function struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is the model's request to run one tool, with raw JSON arguments.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type Response struct {
	Content          string
	ToolCalls        []ToolCall
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// HasToolCalls reports whether the model asked for tools instead of (or
// before) producing final text.
func (r Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

type Client interface {
	GenerateWithTools(ctx context.Context, messages []Message, tools []Tool) (Response, error)
}
