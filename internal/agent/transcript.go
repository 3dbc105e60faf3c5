package agent

import (
	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// BuildTranscript returns the model-facing transcript for the first round of
// a turn: the system prompt followed by every persisted message in dialogue
// order. Tool results are never persisted, so history replays as plain
// user/assistant text.
func BuildTranscript(systemPrompt string, history []store.Message) []core.Message {
	messages := make([]core.Message, 0, len(history)+1)
	messages = append(messages, core.Message{Role: core.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, core.Message{Role: m.Role, Content: m.Content})
	}
	return messages
}
