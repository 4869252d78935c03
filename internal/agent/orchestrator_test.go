package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

// scriptedBackend replays one []string of deltas per call to
// ChatCompletionStream, in order; it is the hand-rolled fake used in place
// of a real network backend.
type scriptedBackend struct {
	calls  int
	chunks [][]string
}

func (b *scriptedBackend) ListModels(ctx context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{Name: "test-model"}}, nil
}

func (b *scriptedBackend) ChatCompletionStream(ctx context.Context, model string, messages []BackendMessage) (<-chan Delta, error) {
	if b.calls >= len(b.chunks) {
		return nil, errors.New("scriptedBackend: no more scripted calls")
	}
	parts := b.chunks[b.calls]
	b.calls++

	out := make(chan Delta, len(parts))
	for _, p := range parts {
		out <- Delta{Text: p}
	}
	close(out)
	return out, nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echoes its input" }
func (echoTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`)
}
func (echoTool) Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error) {
	var p struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	value, _ := json.Marshal(map[string]string{"echoed": p.Message})
	return &ToolResult{ToolName: "echo", Value: value}, nil
}

func indexOfKind(events []Event, kind EventKind) int {
	for i, e := range events {
		if e.Kind == kind {
			return i
		}
	}
	return -1
}

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatalf("timed out waiting for orchestrator events")
		}
	}
}

func TestOrchestrator_PlainAnswer_NoToolCall(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{
		{"The answer ", "is 42."},
	}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "what is the answer?"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	if hasKind(events, EventToolCallDetected) {
		t.Fatalf("did not expect a tool call in a plain answer")
	}
	got := collectText(events, EventAiResponseChunk)
	if got != "The answer is 42." {
		t.Fatalf("got display text %q", got)
	}

	snapshot := convo.Snapshot()
	last := snapshot[len(snapshot)-1]
	if last.Role != RoleAssistant || last.Content != "The answer is 42." {
		t.Fatalf("expected the assistant's answer appended to the log, got %+v", last)
	}
}

func TestOrchestrator_ToolCall_ThenFinalAnswer(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{
		{"Let me check.\n<<<TOOL_CALL>>>\ntool_name: echo\nparameters:\n  message: hi\n<<<END_TOOL_CALL>>>"},
		{"It says hi."},
	}}
	registry := NewToolRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	orch := NewOrchestrator(backend, registry, nil, 4)
	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "say hi via the echo tool"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	if !hasKind(events, EventToolExecuting) {
		t.Fatalf("expected EventToolExecuting, got %+v", events)
	}
	if !hasKind(events, EventToolResult) {
		t.Fatalf("expected EventToolResult, got %+v", events)
	}

	idxDetected := indexOfKind(events, EventToolCallDetected)
	idxExecuting := indexOfKind(events, EventToolExecuting)
	idxResult := indexOfKind(events, EventToolResult)
	if !(idxDetected < idxExecuting && idxExecuting < idxResult) {
		t.Fatalf("expected ToolCallDetected < ToolExecuting < ToolResult in causal order, got indices %d,%d,%d in %+v",
			idxDetected, idxExecuting, idxResult, events)
	}

	snapshot := convo.Snapshot()
	var sawTool, sawFinal bool
	for _, m := range snapshot {
		if m.Role == RoleTool {
			sawTool = true
		}
		if m.Role == RoleAssistant && m.Content == "It says hi." {
			sawFinal = true
		}
	}
	if !sawTool {
		t.Fatalf("expected a tool message appended to the log, got %+v", snapshot)
	}
	if !sawFinal {
		t.Fatalf("expected the final assistant answer appended to the log, got %+v", snapshot)
	}
	if backend.calls != 2 {
		t.Fatalf("expected the orchestrator to re-stream after the tool ran, got %d calls", backend.calls)
	}
}

func TestOrchestrator_MalformedBlock_PreservesRawTextNoExecution(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{
		{"About to try.\n<<<TOOL_CALL>>>\n: : not yaml : :\n<<<END_TOOL_CALL>>>"},
	}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "try something malformed"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	if !hasKind(events, EventToolBlockParseWarning) {
		t.Fatalf("expected EventToolBlockParseWarning, got %+v", events)
	}
	if hasKind(events, EventToolExecuting) {
		t.Fatalf("a malformed block must never execute a tool, got %+v", events)
	}

	snapshot := convo.Snapshot()
	last := snapshot[len(snapshot)-1]
	if last.Role != RoleAssistant || !strings.Contains(last.Content, "not yaml") {
		t.Fatalf("expected the raw block body preserved in the assistant message, got %+v", last)
	}
}

func TestOrchestrator_UnknownTool_EmitsToolError(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{
		{"<<<TOOL_CALL>>>\ntool_name: nonexistent\nparameters: {}\n<<<END_TOOL_CALL>>>"},
		{"Okay, I could not do that."},
	}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "call a tool that does not exist"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	if !hasKind(events, EventToolError) {
		t.Fatalf("expected EventToolError for an unknown tool, got %+v", events)
	}
}

func TestOrchestrator_ContextWatermark_EmitsThinking(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{
		{"short answer"},
	}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	orch.SetContextWatermark(func(messages []Message) int { return len(messages) }, 2)

	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "hello"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	if !hasKind(events, EventThinking) {
		t.Fatalf("expected EventThinking once the sizer crossed the watermark, got %+v", events)
	}
}

func TestOrchestrator_ContextWatermark_BelowThreshold_NoThinking(t *testing.T) {
	backend := &scriptedBackend{chunks: [][]string{
		{"short answer"},
	}}
	registry := NewToolRegistry()
	orch := NewOrchestrator(backend, registry, nil, 4)
	orch.SetContextWatermark(func(messages []Message) int { return len(messages) }, 1000)

	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "hello"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	if hasKind(events, EventThinking) {
		t.Fatalf("did not expect EventThinking below the watermark, got %+v", events)
	}
}

func TestOrchestrator_LoopLimit_EmitsError(t *testing.T) {
	loopingCall := "<<<TOOL_CALL>>>\ntool_name: echo\nparameters:\n  message: again\n<<<END_TOOL_CALL>>>"
	backend := &scriptedBackend{chunks: [][]string{
		{loopingCall}, {loopingCall}, {loopingCall},
	}}
	registry := NewToolRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	orch := NewOrchestrator(backend, registry, nil, 3)
	convo := NewConversationLog("you are a test assistant")
	convo.Append(Message{Role: RoleUser, Content: "loop forever"})

	events := drain(t, orch.RunTurn(context.Background(), convo, "test-model"))

	var gotLimitErr bool
	for _, e := range events {
		if e.Kind == EventError && errors.Is(e.Err, ErrLoopLimitExceeded) {
			gotLimitErr = true
		}
	}
	if !gotLimitErr {
		t.Fatalf("expected ErrLoopLimitExceeded, got %+v", events)
	}

	var detectedCount int
	for _, e := range events {
		if e.Kind == EventToolCallDetected {
			detectedCount++
		}
	}
	if detectedCount > 3 {
		t.Fatalf("expected at most maxIterations (3) ToolCallDetected events, got %d", detectedCount)
	}
}
