package agent

import (
	"context"
	"testing"
	"time"
)

// blockingBackend never finishes ListModels until release is closed, used
// to prove the session mutex is not held across network calls.
type blockingBackend struct {
	scriptedBackend
	release chan struct{}
}

func (b *blockingBackend) ListModels(ctx context.Context) ([]ModelInfo, error) {
	<-b.release
	return []ModelInfo{{Name: "unblocked"}}, nil
}

func TestSession_RevertLastTurn(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{{"hi"}}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	session := NewSession(backend, orch, "be terse", "test-model", nil)

	session.AddUserMessage("hello")
	events := drain(t, session.StartRealtimeChat(context.Background()))
	if hasKind(events, EventError) {
		t.Fatalf("unexpected error events: %+v", events)
	}

	before := session.GetMessages()
	if len(before) != 3 { // system, user, assistant
		t.Fatalf("expected 3 messages before revert, got %d: %+v", len(before), before)
	}

	session.RevertLastTurn()
	after := session.GetMessages()
	if len(after) != 1 {
		t.Fatalf("expected only the system message after revert, got %d: %+v", len(after), after)
	}
	if after[0].Role != RoleSystem {
		t.Fatalf("expected system message to survive revert, got %+v", after[0])
	}

	// Idempotent: reverting again with only the system message left is a no-op.
	session.RevertLastTurn()
	if len(session.GetMessages()) != 1 {
		t.Fatalf("expected revert to be a no-op once only System remains")
	}
}

func TestSession_SetModel(t *testing.T) {
	session := NewSession(nil, nil, "system", "model-a", nil)
	if session.Model() != "model-a" {
		t.Fatalf("got %q", session.Model())
	}
	session.SetModel("model-b")
	if session.Model() != "model-b" {
		t.Fatalf("got %q", session.Model())
	}
}

func TestSession_ListModels_DoesNotBlockOnMutex(t *testing.T) {
	release := make(chan struct{})
	backend := &blockingBackend{release: release}
	session := NewSession(backend, nil, "system", "model-a", nil)

	done := make(chan error, 1)
	go func() {
		_, err := session.ListModels(context.Background())
		done <- err
	}()

	// While ListModels is blocked inside the backend call, the mutex must
	// already be released: a concurrent mutating operation should proceed
	// immediately rather than wait for ListModels to return.
	setDone := make(chan struct{})
	go func() {
		session.SetModel("model-c")
		close(setDone)
	}()

	select {
	case <-setDone:
	case <-time.After(time.Second):
		t.Fatalf("SetModel was blocked behind an in-flight ListModels call")
	}

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListModels: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ListModels never returned")
	}

	if session.Model() != "model-c" {
		t.Fatalf("got %q", session.Model())
	}
}

// stallingBackend stalls its first call until the caller's context is
// cancelled, simulating a slow backend mid-turn; subsequent calls fall
// through to the embedded scriptedBackend's normal scripted behavior.
type stallingBackend struct {
	scriptedBackend
	stalled bool
}

func (b *stallingBackend) ChatCompletionStream(ctx context.Context, model string, messages []BackendMessage) (<-chan Delta, error) {
	if !b.stalled {
		b.stalled = true
		out := make(chan Delta, 1)
		out <- Delta{Text: "starting..."}
		go func() {
			<-ctx.Done()
			close(out)
		}()
		return out, nil
	}
	return b.scriptedBackend.ChatCompletionStream(ctx, model, messages)
}

func TestSession_CancelActiveTurn_ClosesPromptlyAndSessionStaysUsable(t *testing.T) {
	backend := &stallingBackend{scriptedBackend: scriptedBackend{chunks: [][]string{{"back to normal"}}}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	session := NewSession(backend, orch, "be terse", "test-model", nil)

	session.AddUserMessage("hello")
	stream := session.StartRealtimeChat(context.Background())

	// Drain the one delta the backend emits before it stalls.
	<-stream

	session.CancelActiveTurn()

	select {
	case _, ok := <-stream:
		if ok {
			// there may be one more trailing event (e.g. from Close()); keep
			// draining until the channel actually closes.
			for range stream {
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("turn did not close promptly after cancellation")
	}

	// The session must still accept a fresh turn after cancellation.
	session.AddUserMessage("hello again")
	events := drain(t, session.StartRealtimeChat(context.Background()))
	if hasKind(events, EventError) {
		t.Fatalf("expected the next turn to succeed after cancellation, got %+v", events)
	}
}

func TestSession_NoBackend_EmitsError(t *testing.T) {
	session := NewSession(nil, nil, "system", "model-a", nil)
	events := drain(t, session.StartRealtimeChat(context.Background()))
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("expected a single EventError, got %+v", events)
	}
}
