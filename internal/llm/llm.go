// Package llm wraps the Gemini generate API behind a conversation-shaped
// interface. The caller owns the tool loop: a Reply either carries text or
// a tool call to execute, and tool results are fed back as turns.
package llm

import "context"

// Role values for Turn.
const (
	RoleUser     = "user"
	RoleModel    = "model"
	RoleFunction = "function"
)

// ToolCall is a function invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult is the outcome of executing a ToolCall, sent back to the
// model on the next round.
type ToolResult struct {
	Name   string
	Result map[string]any
}

// Turn is one entry of the running conversation sent to the model.
// Exactly one of Text, Call, or Result is set.
type Turn struct {
	Role   string
	Text   string
	Call   *ToolCall
	Result *ToolResult
}

// Reply is the model's answer to a Generate call: either text or a tool
// call to execute.
type Reply struct {
	Text string
	Call *ToolCall
}

// Generator produces model replies. Implemented by *Engine; tests swap in
// a scripted fake.
type Generator interface {
	Generate(ctx context.Context, system string, turns []Turn) (Reply, error)
}
