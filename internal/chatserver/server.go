// Package chatserver is the HTTP transport: the assistant chat websocket,
// login, conversation history and health endpoints.
package chatserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RobertBecaria/MARGOCRM/internal/agent"
	"github.com/RobertBecaria/MARGOCRM/internal/config"
	"github.com/RobertBecaria/MARGOCRM/internal/health"
	"github.com/RobertBecaria/MARGOCRM/internal/store"
)

// CloseUnauthorized is the websocket close code for a missing or bad token.
const CloseUnauthorized = 4001

const shutdownGrace = 10 * time.Second

// TurnRunner runs one assistant turn. *agent.Loop implements it.
type TurnRunner interface {
	RunTurn(ctx context.Context, req agent.TurnRequest) (*agent.TurnResult, error)
}

// ConversationReader serves the history endpoints. *store.DB implements it.
type ConversationReader interface {
	GetOrCreateConversation(ctx context.Context, id, userID int64) (*store.Conversation, error)
	ListConversations(ctx context.Context, userID int64) ([]store.ConversationSummary, error)
	ConversationHistory(ctx context.Context, conversationID int64) ([]store.Message, error)
}

// Server serves the chat websocket and the REST endpoints.
type Server struct {
	Addr          string
	Auth          *Authenticator
	Runner        TurnRunner
	Conversations ConversationReader
	Health        *health.Registry
	// CORSOrigins restricts browser origins; empty allows any.
	CORSOrigins []string
	QueueSize   int
	Logger      *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[*session]struct{}
	wg       sync.WaitGroup
}

// New creates a server from configuration.
func New(cfg *config.Config, auth *Authenticator, runner TurnRunner, conversations ConversationReader, reg *health.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		Addr:          cfg.Listen,
		Auth:          auth,
		Runner:        runner,
		Conversations: conversations,
		Health:        reg,
		CORSOrigins:   cfg.CORSOrigins,
		QueueSize:     cfg.SessionQueueSize,
		Logger:        logger,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(r *http.Request) bool { return s.originAllowed(r.Header.Get("Origin")) },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/ai/conversations", s.requireUser(s.handleListConversations))
	mux.HandleFunc("GET /api/ai/conversations/{id}/messages", s.requireUser(s.handleConversationMessages))
	mux.HandleFunc("GET /ws/chat", s.handleChat)
	return s.cors(mux)
}

// Run serves until ctx is cancelled, then shuts down: HTTP requests drain,
// chat connections are closed and running turns are given shutdownGrace to
// finish.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Turns outlive the signal that stops the server.
		BaseContext: func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	errc := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", s.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeSessions()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.Logger.Warn("chat sessions still running at shutdown")
	}
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	return err
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[*session]struct{})
	}
	s.sessions[sess] = struct{}{}
	s.wg.Add(1)
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sess := range s.sessions {
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		sess.conn.Close()
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	user, authErr := s.Auth.Authenticate(r.Context(), r.URL.Query().Get("token"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	if authErr != nil {
		if !errors.Is(authErr, ErrUnauthorized) {
			s.Logger.Error("chat authentication failed", "error", authErr)
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseUnauthorized, "Invalid token"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	sess := newSession(conn, user, s.Runner, s.QueueSize, s.Logger)
	s.track(sess)
	defer s.untrack(sess)
	sess.serve(r.Context())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.Health.Check()
	status := http.StatusOK
	if report.Status == health.StatusError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        *store.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16*1024)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	token, expires, user, err := s.Auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if err != nil {
		s.Logger.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	s.Logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{AccessToken: token, TokenType: "bearer", ExpiresAt: expires, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if err := s.Auth.Logout(r.Context(), token); err != nil {
		s.Logger.Error("logout failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type userHandler func(w http.ResponseWriter, r *http.Request, user *store.User)

func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.Auth.Authenticate(r.Context(), bearerToken(r))
		if errors.Is(err, ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if err != nil {
			s.Logger.Error("authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		next(w, r, user)
	}
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request, user *store.User) {
	list, err := s.Conversations.ListConversations(r.Context(), user.ID)
	if err != nil {
		s.Logger.Error("listing conversations", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if list == nil {
		list = []store.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request, user *store.User) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if _, err := s.Conversations.GetOrCreateConversation(r.Context(), id, user.ID); errors.Is(err, store.ErrConversationNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	} else if err != nil {
		s.Logger.Error("loading conversation", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	msgs, err := s.Conversations.ConversationHistory(r.Context(), id)
	if err != nil {
		s.Logger.Error("loading history", "conversation_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" || len(s.CORSOrigins) == 0 || slices.Contains(s.CORSOrigins, "*") {
		return true
	}
	return slices.Contains(s.CORSOrigins, origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
