// Package agent runs one assistant turn: it replays the conversation to the
// model, executes the tool calls the model asks for through the capability
// gate and the tool registry, and persists the final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RobertBecaria/MARGOCRM/internal/config"
	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
	"github.com/RobertBecaria/MARGOCRM/internal/tools"
)

// FallbackReply is returned when a turn runs out of tool rounds.
const FallbackReply = "Выполнено несколько действий. Могу ли я ещё чем-то помочь?"

// modelErrorReply is the final content when the model backend call fails.
const modelErrorReply = "Произошла ошибка при обращении к AI: %v"

// ErrEmptyMessage is returned for an utterance with no text.
var ErrEmptyMessage = errors.New("empty message")

// State is a turn's position in the loop.
type State int

const (
	StateAwaitModel State = iota
	StateExecuteTools
	StateFinal
	StateBudgetExceeded
)

func (s State) String() string {
	switch s {
	case StateAwaitModel:
		return "AWAIT_MODEL"
	case StateExecuteTools:
		return "EXECUTE_TOOLS"
	case StateFinal:
		return "FINAL"
	case StateBudgetExceeded:
		return "BUDGET_EXCEEDED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ConversationStore persists conversations and their messages.
// *store.DB implements it.
type ConversationStore interface {
	GetOrCreateConversation(ctx context.Context, id, userID int64) (*store.Conversation, error)
	AppendMessage(ctx context.Context, conversationID int64, role, content string, actions []core.Action) (*store.Message, error)
	ConversationHistory(ctx context.Context, conversationID int64) ([]store.Message, error)
}

// HandleSource hands out the per-turn data-access handle. *store.DB implements it.
type HandleSource interface {
	Acquire(ctx context.Context) (*store.Handle, error)
}

// TurnRequest is one user utterance from an authenticated caller.
type TurnRequest struct {
	UserID int64
	Role   store.Role
	Name   string
	// ConversationID 0 starts a new conversation.
	ConversationID int64
	Message        string
}

// TurnResult is what the transport reports back to the caller.
type TurnResult struct {
	ConversationID int64         `json:"conversation_id"`
	Content        string        `json:"content"`
	Actions        []core.Action `json:"actions"`
	// State is StateFinal or StateBudgetExceeded.
	State  State `json:"-"`
	Rounds int   `json:"-"`
}

// Loop runs assistant turns. It is safe for concurrent use; turns on the
// same conversation run one at a time.
type Loop struct {
	Store    ConversationStore
	Handles  HandleSource
	Client   core.LLMClient
	Gate     *tools.Gate
	Registry *tools.Registry
	Logger   *slog.Logger

	// MaxIterations caps tool rounds per turn (default 5).
	MaxIterations int
	// ToolOutputMaxRunes caps each tool result fed back to the model (0 = no cap).
	ToolOutputMaxRunes int
	// Now is the clock used for the system prompt; nil means time.Now.
	Now func() time.Time

	locks convLocks
}

// New creates a loop from configuration.
func New(cfg *config.Config, st ConversationStore, handles HandleSource, client core.LLMClient, gate *tools.Gate, reg *tools.Registry, logger *slog.Logger) *Loop {
	return &Loop{
		Store:              st,
		Handles:            handles,
		Client:             client,
		Gate:               gate,
		Registry:           reg,
		Logger:             logger,
		MaxIterations:      cfg.MaxIterations,
		ToolOutputMaxRunes: cfg.ToolOutputMaxRunes,
	}
}

func (l *Loop) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func (l *Loop) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

func (l *Loop) maxIterations() int {
	if l.MaxIterations > 0 {
		return l.MaxIterations
	}
	return config.DefaultMaxIterations
}

// turn holds the state of one RunTurn call.
type turn struct {
	req        TurnRequest
	catalog    *tools.Catalog
	transcript []core.Message
	actions    []core.Action
	rounds     int
	handle     *store.Handle
}

// RunTurn persists the utterance, runs the model/tool loop and returns the
// final answer. Store faults are returned as errors; model and tool faults
// never are.
func (l *Loop) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, ErrEmptyMessage
	}
	start := time.Now()
	log := l.logger().With("user_id", req.UserID, "role", req.Role)

	conv, err := l.Store.GetOrCreateConversation(ctx, req.ConversationID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}
	log = log.With("conversation_id", conv.ID)

	release, err := l.locks.acquire(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("waiting for conversation %d: %w", conv.ID, err)
	}
	defer release()

	if _, err := l.Store.AppendMessage(ctx, conv.ID, core.RoleUser, req.Message, nil); err != nil {
		return nil, fmt.Errorf("saving user message: %w", err)
	}
	history, err := l.Store.ConversationHistory(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	t := &turn{
		req:     req,
		catalog: l.Gate.SelectTools(req.Role),
	}
	prompt := BuildSystemPrompt(l.now(), Caller{ID: req.UserID, Name: req.Name, Role: req.Role})
	t.transcript = BuildTranscript(prompt, history)
	defer func() {
		if t.handle != nil {
			if err := t.handle.Release(); err != nil {
				log.Warn("releasing data handle", "error", err)
			}
		}
	}()

	var (
		content string
		calls   []core.ToolCall
		state   = StateAwaitModel
	)
	for {
		switch state {
		case StateAwaitModel:
			var err error
			content, calls, err = l.Client.ChatCompletionWithTools(ctx, t.transcript, t.catalog.Definitions())
			if err != nil {
				log.Error("model call failed", "round", t.rounds+1, "error", err)
				content, calls = fmt.Sprintf(modelErrorReply, err), nil
			}
			if len(calls) == 0 {
				state = StateFinal
			} else {
				state = StateExecuteTools
			}

		case StateExecuteTools:
			t.rounds++
			if err := l.executeRound(ctx, t, content, calls); err != nil {
				return nil, err
			}
			if t.rounds >= l.maxIterations() {
				state = StateBudgetExceeded
			} else {
				state = StateAwaitModel
			}

		case StateFinal:
			if _, err := l.Store.AppendMessage(ctx, conv.ID, core.RoleAssistant, content, t.actions); err != nil {
				return nil, fmt.Errorf("saving assistant message: %w", err)
			}
			log.Info("turn complete", "state", state, "rounds", t.rounds,
				"actions", len(t.actions), "elapsed", time.Since(start))
			return l.result(conv.ID, content, t, state), nil

		case StateBudgetExceeded:
			log.Warn("tool round budget exhausted", "rounds", t.rounds,
				"actions", len(t.actions), "elapsed", time.Since(start))
			return l.result(conv.ID, FallbackReply, t, state), nil
		}
	}
}

func (l *Loop) result(convID int64, content string, t *turn, state State) *TurnResult {
	actions := t.actions
	if actions == nil {
		actions = []core.Action{}
	}
	return &TurnResult{
		ConversationID: convID,
		Content:        content,
		Actions:        actions,
		State:          state,
		Rounds:         t.rounds,
	}
}

// executeRound runs one round of tool calls in emission order. The model's
// request and each result are appended to the transcript only; nothing here
// is persisted as a message.
func (l *Loop) executeRound(ctx context.Context, t *turn, content string, calls []core.ToolCall) error {
	calls = append([]core.ToolCall(nil), calls...)
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
		if calls[i].Type == "" {
			calls[i].Type = "function"
		}
	}
	t.transcript = append(t.transcript, core.Message{
		Role:      core.RoleAssistant,
		Content:   content,
		ToolCalls: calls,
	})

	for _, tc := range calls {
		action, err := l.execute(ctx, t, tc)
		if err != nil {
			return err
		}
		t.actions = append(t.actions, action)
		t.transcript = append(t.transcript, core.Message{
			Role:       core.RoleTool,
			Content:    tools.EncodeResult(action.Result, l.ToolOutputMaxRunes),
			ToolCallID: tc.ID,
		})
	}
	return nil
}

// execute runs a single tool call. Only a failure to obtain the data handle
// is returned as an error; everything else becomes the action's result.
func (l *Loop) execute(ctx context.Context, t *turn, tc core.ToolCall) (core.Action, error) {
	name := tc.Function.Name
	args := l.Gate.EnforceOverrides(t.req.Role, name, tools.ParseArgs(tc.Function.Arguments), t.req.UserID)
	action := core.Action{Tool: name, Args: args}

	switch {
	case !l.registered(name):
		action.Result = core.ErrorResult(fmt.Sprintf("Unknown tool: %s", name))
	case !t.catalog.Allows(name):
		l.logger().Warn("refused tool outside caller catalog",
			"tool", name, "user_id", t.req.UserID, "role", t.req.Role)
		action.Result = tools.RefusalResult(name, t.req.Role)
	default:
		if t.handle == nil {
			h, err := l.Handles.Acquire(ctx)
			if err != nil {
				return action, fmt.Errorf("acquiring data handle: %w", err)
			}
			t.handle = h
		}
		action.Result = l.Registry.Dispatch(ctx, t.handle, tools.Call{
			Name:     tools.Name(name),
			Args:     args,
			CallerID: t.req.UserID,
		})
	}
	l.logger().Debug("tool executed", "tool", name, "failed", action.Failed(), "round", t.rounds)
	return action, nil
}

func (l *Loop) registered(name string) bool {
	_, ok := l.Registry.Lookup(name)
	return ok
}
