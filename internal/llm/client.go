// Package llm is the client for OpenAI-compatible chat-completions backends
// (DeepSeek by default).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/RobertBecaria/MARGOCRM/internal/config"
	"github.com/RobertBecaria/MARGOCRM/internal/core"
)

// UnavailableReply is returned instead of calling the backend when no API key is configured.
const UnavailableReply = "AI-ассистент временно недоступен. API ключ не настроен."

// parseContent parses API content that may be string, null, or array of parts (e.g. [{"type":"text","text":"..."}]).
func parseContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []map[string]any
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var b strings.Builder
	for _, p := range parts {
		if typ, _ := p["type"].(string); typ != "" && typ != "text" {
			continue
		}
		if t, ok := p["text"].(string); ok {
			b.WriteString(t)
		}
	}
	return b.String()
}

type chatRequest struct {
	Model       string                `json:"model"`
	Messages    []core.Message        `json:"messages"`
	Tools       []core.ToolDefinition `json:"tools,omitempty"`
	Temperature float64               `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			Role      string          `json:"role"`
			ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client calls an OpenAI-compatible chat-completions endpoint. It never
// retries: a failed call is reported to the caller, which decides what the
// user sees.
type Client struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	HTTP        *http.Client
	Logger      *slog.Logger

	health tracker
}

// NewClient creates a client from configuration. The HTTP client's timeout
// bounds every call.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		APIKey:      cfg.APIKey,
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		HTTP:        &http.Client{Timeout: cfg.ModelTimeout},
		Logger:      logger,
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

// ChatCompletionWithTools sends the transcript and tools; returns content and any tool_calls.
// Without an API key it returns UnavailableReply and makes no request.
func (c *Client) ChatCompletionWithTools(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	if !c.Configured() {
		c.Logger.Warn("model API key not configured")
		return UnavailableReply, nil, nil
	}
	content, calls, err := c.do(ctx, messages, tools)
	if err != nil {
		c.health.recordError(err)
		return "", nil, err
	}
	c.health.recordSuccess()
	return content, calls, nil
}

func (c *Client) do(ctx context.Context, messages []core.Message, tools []core.ToolDefinition) (string, []core.ToolCall, error) {
	raw, err := json.Marshal(chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Tools:       tools,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", nil, fmt.Errorf("encoding request: %w", err)
	}
	c.Logger.Log(ctx, config.LevelTrace, "chat completion request", "body", string(raw))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	start := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("reading response: %w", err)
	}
	c.Logger.Log(ctx, config.LevelTrace, "chat completion response", "status", resp.StatusCode, "body", string(body))
	c.Logger.Debug("chat completion", "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body, 300))
	}
	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", nil, fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != nil {
		return "", nil, fmt.Errorf("backend error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", nil, fmt.Errorf("no choices in response")
	}
	msg := out.Choices[0].Message
	calls := msg.ToolCalls
	for i := range calls {
		if calls[i].Type == "" {
			calls[i].Type = "function"
		}
	}
	return parseContent(msg.Content), calls, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	r := []rune(s)
	if len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}
