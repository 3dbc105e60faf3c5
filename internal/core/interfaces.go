package core

import (
	"context"
)

// LLMClient abstracts the model-inference backend (DeepSeek, any OpenAI-compatible API).
type LLMClient interface {
	// ChatCompletionWithTools sends the transcript and the advertised tools and
	// returns the assistant content plus any tool calls the model requested.
	ChatCompletionWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, error)
}
