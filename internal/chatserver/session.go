package chatserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RobertBecaria/MARGOCRM/internal/agent"
	"github.com/RobertBecaria/MARGOCRM/internal/core"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// User-visible error texts.
const (
	msgInvalidJSON   = "Invalid JSON"
	msgEmptyMessage  = "Пустое сообщение"
	msgBusy          = "Подождите, предыдущие сообщения ещё обрабатываются"
	msgInternalError = "Произошла внутренняя ошибка"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 64 * 1024
)

// Outbound events.
type typingEvent struct {
	Type   string `json:"type"`
	Typing bool   `json:"typing"`
}

type actionEvent struct {
	Type   string         `json:"type"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Result map[string]any `json:"result"`
}

type messageEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	ConversationID int64  `json:"conversation_id"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// inbound is a client frame. "content" is accepted in place of "message".
type inbound struct {
	Message        string `json:"message"`
	Content        string `json:"content"`
	ConversationID *int64 `json:"conversation_id"`
}

type utterance struct {
	text           string
	conversationID *int64
}

// session is one websocket connection. A reader goroutine parses frames and
// queues utterances; a single worker runs them one at a time, so turns of a
// session never overlap. All writes go through send.
type session struct {
	conn   *websocket.Conn
	user   *store.User
	runner TurnRunner
	logger *slog.Logger

	queue   chan utterance
	closed  atomic.Bool
	writeMu sync.Mutex

	// conversationID is owned by the worker.
	conversationID int64
}

func newSession(conn *websocket.Conn, user *store.User, runner TurnRunner, queueSize int, logger *slog.Logger) *session {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &session{
		conn:   conn,
		user:   user,
		runner: runner,
		logger: logger.With("user_id", user.ID, "role", user.Role),
		queue:  make(chan utterance, queueSize),
	}
}

// serve runs the session until the connection closes. A turn that is
// running when the client leaves completes; queued utterances are dropped.
func (s *session) serve(ctx context.Context) {
	s.logger.Info("chat session opened")
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.work(ctx)
	}()

	stopPing := make(chan struct{})
	go s.ping(stopPing)

	s.read()
	s.closed.Store(true)
	close(s.queue)
	close(stopPing)
	wg.Wait()
	s.conn.Close()
	s.logger.Info("chat session closed")
}

func (s *session) read() {
	s.conn.SetReadLimit(maxInboundSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Debug("chat read ended", "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.send(errorEvent{Type: "error", Message: msgInvalidJSON})
			continue
		}
		text := in.Message
		if text == "" {
			text = in.Content
		}
		if strings.TrimSpace(text) == "" {
			s.send(errorEvent{Type: "error", Message: msgEmptyMessage})
			continue
		}
		select {
		case s.queue <- utterance{text: text, conversationID: in.ConversationID}:
		default:
			s.logger.Warn("chat queue full, rejecting utterance")
			s.send(errorEvent{Type: "error", Message: msgBusy})
		}
	}
}

func (s *session) work(ctx context.Context) {
	for u := range s.queue {
		if s.closed.Load() {
			continue
		}
		s.handle(ctx, u)
	}
}

func (s *session) handle(ctx context.Context, u utterance) {
	s.send(typingEvent{Type: "typing", Typing: true})
	defer s.send(typingEvent{Type: "typing", Typing: false})

	convID := s.conversationID
	if u.conversationID != nil {
		convID = *u.conversationID
	}
	res, err := s.runner.RunTurn(ctx, agent.TurnRequest{
		UserID:         s.user.ID,
		Role:           s.user.Role,
		Name:           s.user.FullName,
		ConversationID: convID,
		Message:        u.text,
	})
	if err != nil {
		s.logger.Error("chat turn failed", "conversation_id", convID, "error", err)
		s.send(errorEvent{Type: "error", Message: msgInternalError})
		return
	}
	s.conversationID = res.ConversationID
	for _, a := range res.Actions {
		s.send(newActionEvent(a))
	}
	s.send(messageEvent{Type: "message", Content: res.Content, ConversationID: res.ConversationID})
}

func newActionEvent(a core.Action) actionEvent {
	ev := actionEvent{Type: "action", Tool: a.Tool, Args: a.Args, Result: a.Result}
	if ev.Args == nil {
		ev.Args = map[string]any{}
	}
	if ev.Result == nil {
		ev.Result = map[string]any{}
	}
	return ev
}

func (s *session) ping(stop <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// send writes one event. Write errors are logged and dropped; the reader
// notices a dead connection and ends the session.
func (s *session) send(v any) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(v); err != nil {
		s.logger.Debug("chat write failed", "error", err)
	}
}
