package core

import (
	"encoding/json"
	"testing"
)

func TestMessage_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"empty assistant reply", Message{Role: RoleAssistant}, `{"role":"assistant","content":""}`},
		{"user text", Message{Role: RoleUser, Content: "привет"}, `{"role":"user","content":"привет"}`},
		{"tool result", Message{Role: RoleTool, Content: "{}", ToolCallID: "c1"}, `{"role":"tool","content":"{}","tool_call_id":"c1"}`},
		{"tool calls without text", Message{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "c1", Type: "function", Function: FunctionCall{Name: "get_tasks", Arguments: "{}"}}}},
			`{"role":"assistant","tool_calls":[{"id":"c1","type":"function","function":{"name":"get_tasks","arguments":"{}"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatal(err)
			}
			if string(b) != tt.want {
				t.Errorf("got %s, want %s", b, tt.want)
			}
		})
	}
}
