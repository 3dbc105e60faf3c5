package core

import "encoding/json"

// Message roles used in the model-facing transcript and in persisted history.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a chat message (OpenAI-compatible wire format).
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// MarshalJSON always writes "content" on a message without tool calls.
// OpenAI-compatible backends reject an assistant entry that has neither, which
// is what an empty persisted reply would otherwise replay as.
func (m Message) MarshalJSON() ([]byte, error) {
	type wire Message
	if len(m.ToolCalls) > 0 {
		return json.Marshal(wire(m))
	}
	return json.Marshal(struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id,omitempty"`
	}{m.Role, m.Content, m.ToolCallID})
}

// ToolCall is a single tool invocation request.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec describes the function signature.
type FunctionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"` // JSON Schema
}

// Action is one entry of a turn's actions ledger: the tool that ran, the
// arguments it ran with after capability overrides, and its result payload.
type Action struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result"`
}

// Failed reports whether the action's result carries a tool-level error.
func (a Action) Failed() bool {
	return IsToolError(a.Result)
}

// IsToolError reports whether a tool result payload signals a tool-level
// failure, i.e. it carries an "error" field.
func IsToolError(result map[string]any) bool {
	if result == nil {
		return false
	}
	_, ok := result["error"]
	return ok
}

// ErrorResult builds the payload a tool returns for a non-fatal failure.
func ErrorResult(msg string) map[string]any {
	return map[string]any{"error": msg}
}
