package agent

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Session is the facade a front-end (REPL, TUI, anything else) drives
// It owns the Conversation Log and the active model name, and
// serializes the operations that mutate them.
//
// The guarding mutex is held only across short critical sections — never
// across a network call or tool execution — so a concurrent ListModels or
// GetMessages is never blocked behind an in-flight turn.
type Session struct {
	mu sync.Mutex

	id           string
	convo        *ConversationLog
	model        string
	orchestrator *Orchestrator
	backend      Backend
	logger       *slog.Logger

	cancelActive context.CancelFunc
}

// NewSession creates a Session seeded with systemPrompt and defaultModel.
// Its ID is used only to correlate log lines across a run; it never appears
// in the Conversation Log itself.
func NewSession(backend Backend, orchestrator *Orchestrator, systemPrompt, defaultModel string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:           id,
		convo:        NewConversationLog(systemPrompt),
		model:        defaultModel,
		orchestrator: orchestrator,
		backend:      backend,
		logger:       logger.With("session_id", id),
	}
}

// ID returns the session's correlation ID.
func (s *Session) ID() string {
	return s.id
}

// AddUserMessage appends a user message to the log. It does not start a
// turn; call StartRealtimeChat to stream a response.
func (s *Session) AddUserMessage(content string) {
	s.mu.Lock()
	s.convo.Append(Message{Role: RoleUser, Content: content})
	s.mu.Unlock()
}

// StartRealtimeChat runs one turn over the current log and the active
// model, returning the orchestrator's event stream. Only one turn may be
// active at a time; starting a new one while another is in flight cancels
// the previous one first.
func (s *Session) StartRealtimeChat(ctx context.Context) <-chan Event {
	s.mu.Lock()
	if s.cancelActive != nil {
		s.cancelActive()
	}
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelActive = cancel
	convo := s.convo
	model := s.model
	orch := s.orchestrator
	s.mu.Unlock()

	if orch == nil {
		out := make(chan Event, 1)
		out <- Event{Kind: EventError, Err: ErrNoBackend}
		close(out)
		return out
	}

	upstream := orch.RunTurn(turnCtx, convo, model)
	out := make(chan Event)
	go func() {
		defer close(out)
		defer cancel()
		for ev := range upstream {
			out <- ev
		}
		s.mu.Lock()
		if s.cancelActive != nil {
			s.cancelActive = nil
		}
		s.mu.Unlock()
	}()
	return out
}

// CancelActiveTurn cancels whatever turn is currently in flight, if any.
func (s *Session) CancelActiveTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelActive != nil {
		s.cancelActive()
		s.cancelActive = nil
	}
}

// RevertLastTurn pops the log back to just before the last user message
// a revert always leaves at least the system message in place.
func (s *Session) RevertLastTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convo.RevertToBeforeLastUser()
}

// SetModel changes the active model for subsequent turns.
func (s *Session) SetModel(model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Model returns the currently active model.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// ListModels queries the backend for available models. It does not hold
// the session mutex while the network call is in flight.
func (s *Session) ListModels(ctx context.Context) ([]ModelInfo, error) {
	s.mu.Lock()
	backend := s.backend
	s.mu.Unlock()

	if backend == nil {
		return nil, ErrNoBackend
	}
	return backend.ListModels(ctx)
}

// GetMessages returns a defensive snapshot of the conversation history.
func (s *Session) GetMessages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convo.Snapshot()
}

// AddAssistantMessageToHistory appends a message produced outside the
// normal turn loop (for example, a front-end injecting a canned reply).
func (s *Session) AddAssistantMessageToHistory(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convo.Append(Message{Role: RoleAssistant, Content: content})
}

// SetSystemPrompt replaces the system message, for example after the
// registered tool set changes and the schema descriptor needs refreshing.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convo.SetSystemPrompt(prompt)
}
