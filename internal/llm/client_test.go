package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/config"
	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/health"
)

func testClient(url, key string) *Client {
	cfg := config.Default()
	cfg.APIKey = key
	cfg.BaseURL = url + "/v1/"
	cfg.ModelTimeout = 2 * time.Second
	return NewClient(cfg, nil)
}

func TestChatCompletionWithTools_RequestAndToolCalls(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":null,
			"tool_calls":[{"id":"call_1","function":{"name":"get_tasks","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, "sk-test")
	tools := []core.ToolDefinition{{Type: "function", Function: core.FunctionSpec{Name: "get_tasks"}}}
	content, calls, err := c.ChatCompletionWithTools(context.Background(),
		[]core.Message{{Role: core.RoleUser, Content: "покажи мои задачи"}}, tools)
	if err != nil {
		t.Fatal(err)
	}
	if content != "" {
		t.Errorf("content = %q", content)
	}
	if len(calls) != 1 || calls[0].ID != "call_1" || calls[0].Function.Name != "get_tasks" || calls[0].Type != "function" {
		t.Errorf("calls = %+v", calls)
	}
	if got.Model != "deepseek-chat" || got.Temperature != 0.7 || len(got.Tools) != 1 || len(got.Messages) != 1 {
		t.Errorf("request = %+v", got)
	}
	if h := c.HealthCheck(); h.Status != health.StatusOK {
		t.Errorf("health after success = %+v", h)
	}
}

func TestChatCompletionWithTools_ContentParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"Готово"},{"type":"text","text":"!"}]}}]}`))
	}))
	defer srv.Close()

	content, calls, err := testClient(srv.URL, "k").ChatCompletionWithTools(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if content != "Готово!" || len(calls) != 0 {
		t.Errorf("content = %q, calls = %v", content, calls)
	}
}

func TestChatCompletionWithTools_Non2xx(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "k")
	_, _, err := c.ChatCompletionWithTools(context.Background(), nil, nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 503") {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("backend hit %d times, want exactly 1 (no retries)", hits.Load())
	}
	if h := c.HealthCheck(); h.Status != health.StatusError {
		t.Errorf("health after failure = %+v", h)
	}
}

func TestChatCompletionWithTools_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := testClient(srv.URL, "k")
	c.HTTP.Timeout = 50 * time.Millisecond
	if _, _, err := c.ChatCompletionWithTools(context.Background(), nil, nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestChatCompletionWithTools_NoKey(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := testClient(srv.URL, "  ")
	content, calls, err := c.ChatCompletionWithTools(context.Background(), nil, nil)
	if err != nil || content != UnavailableReply || calls != nil {
		t.Errorf("got %q, %v, %v", content, calls, err)
	}
	if hits.Load() != 0 {
		t.Error("no request may be made without an API key")
	}
	if h := c.HealthCheck(); h.Status != health.StatusDegraded {
		t.Errorf("health = %+v", h)
	}
}

func TestParseContent(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`null`, ""},
		{`"plain"`, "plain"},
		{`[{"type":"text","text":"a"},{"type":"image_url","text":"skip"},{"text":"b"}]`, "ab"},
		{`{"odd":true}`, ""},
	}
	for _, tt := range tests {
		if got := parseContent(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("parseContent(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
