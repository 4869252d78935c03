package agent

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Orchestrator drives one multi-turn agent loop: stream a completion, watch
// for a fenced tool call, execute it, fold the result back into the
// Conversation Log, and repeat until the model produces a plain answer or
// the iteration ceiling is hit.
type Orchestrator struct {
	backend       Backend
	tools         *ToolRegistry
	logger        *slog.Logger
	maxIterations int
	openFence     string
	closeFence    string

	contextSizer     func([]Message) int
	contextWatermark int
}

// NewOrchestrator builds an Orchestrator. maxIterations bounds the number of
// stream-then-tool-call cycles within a single turn; it is the safety
// ceiling behind ErrLoopLimitExceeded.
func NewOrchestrator(backend Backend, tools *ToolRegistry, logger *slog.Logger, maxIterations int) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = 1
	}
	return &Orchestrator{
		backend:       backend,
		tools:         tools,
		logger:        logger,
		maxIterations: maxIterations,
		openFence:     DefaultOpenFence,
		closeFence:    DefaultCloseFence,
	}
}

// SetContextWatermark wires an optional token-size estimator. When set, the
// Orchestrator emits an EventThinking diagnostic at the start of any
// iteration whose snapshotted history estimates at or above watermark
// tokens, so a front-end can surface a "context is getting large" notice
// without the core packages depending on a tokenizer library directly.
func (o *Orchestrator) SetContextWatermark(sizer func([]Message) int, watermark int) {
	o.contextSizer = sizer
	o.contextWatermark = watermark
}

// RunTurn executes one full turn against convo using model, emitting Events
// in causal order on the returned channel. The channel is closed when the
// turn ends, whether by a plain answer, a fatal error, or the loop-limit
// ceiling. Cancelling ctx closes the channel promptly; a tool call already
// in flight is awaited (it sees the cancelled context and may stop early)
// and its result is appended to the log before the turn ends, but a tool
// call only detected (not yet executed) is not.
func (o *Orchestrator) RunTurn(ctx context.Context, convo *ConversationLog, model string) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		o.runTurn(ctx, convo, model, out)
	}()
	return out
}

func (o *Orchestrator) runTurn(ctx context.Context, convo *ConversationLog, model string, out chan<- Event) {
	emit := func(e Event) bool {
		select {
		case out <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for iteration := 0; ; iteration++ {
		if iteration >= o.maxIterations {
			emit(Event{Kind: EventError, Err: ErrLoopLimitExceeded})
			return
		}
		if ctx.Err() != nil {
			return
		}

		if o.contextSizer != nil && o.contextWatermark > 0 {
			if size := o.contextSizer(convo.Snapshot()); size >= o.contextWatermark {
				if !emit(Event{Kind: EventThinking, Message: "context size approaching watermark"}) {
					return
				}
			}
		}

		iterCtx, cancelIter := context.WithCancel(ctx)
		text, toolCall, ok := o.runIteration(iterCtx, convo, model, out, emit)
		cancelIter()
		if !ok {
			return
		}

		if toolCall == nil {
			if text != "" {
				msg := Message{Role: RoleAssistant, Content: text}
				convo.Append(msg)
				emit(Event{Kind: EventAddMessageToHistory, Added: &msg})
			}
			return
		}

		if text != "" {
			msg := Message{Role: RoleAssistant, Content: text}
			convo.Append(msg)
			if !emit(Event{Kind: EventAddMessageToHistory, Added: &msg}) {
				return
			}
		}

		if !emit(Event{Kind: EventToolExecuting, ToolName: toolCall.ToolName}) {
			return
		}

		result, err := o.tools.Execute(ctx, toolCall.ToolName, toolCall.Parameters)
		resultEv := Event{Kind: EventToolResult, ToolName: toolCall.ToolName, ToolResult: result}
		if err != nil {
			o.logger.Error("tool execution failed", "tool", toolCall.ToolName, "error", err)
			resultEv = Event{Kind: EventToolError, ToolName: toolCall.ToolName, Message: err.Error()}
			result = &ToolResult{ToolName: toolCall.ToolName, IsError: true, Error: err.Error()}
		}

		// Append before emitting, so a cancellation arriving now still
		// leaves the result in the log.
		toolMsg := Message{Role: RoleTool, Content: toolResultContent(result)}
		convo.Append(toolMsg)
		if !emit(resultEv) {
			return
		}
		if !emit(Event{Kind: EventAddMessageToHistory, Added: &toolMsg}) {
			return
		}
	}
}

// runIteration streams one completion call through a fresh StreamingParser.
// It returns the display text accumulated before any detected call, the
// detected call (nil if the model gave a plain answer), and whether the
// turn should continue (false on a fatal or cancelled stream).
func (o *Orchestrator) runIteration(ctx context.Context, convo *ConversationLog, model string, out chan<- Event, emit func(Event) bool) (string, *ToolCall, bool) {
	messages := toBackendMessages(convo.Snapshot())

	stream, err := o.backend.ChatCompletionStream(ctx, model, messages)
	if err != nil {
		emit(Event{Kind: EventError, Err: err})
		return "", nil, false
	}

	parser := NewStreamingParser(o.openFence, o.closeFence)
	var text string

	for delta := range stream {
		if delta.Err != nil {
			emit(Event{Kind: EventError, Err: delta.Err})
			return "", nil, false
		}

		for _, ev := range parser.Ingest(delta.Text) {
			switch ev.Kind {
			case EventAiResponseChunk, EventPendingDisplayContent:
				text += ev.Text
			case EventToolCallDetected:
				if !emit(ev) {
					return "", nil, false
				}
				return text, ev.ToolCall, true
			}
			if !emit(ev) {
				return "", nil, false
			}
		}
	}

	for _, ev := range parser.Close() {
		if ev.Kind == EventAiResponseChunk {
			text += ev.Text
		}
		if !emit(ev) {
			return "", nil, false
		}
	}

	return text, nil, true
}

func toBackendMessages(messages []Message) []BackendMessage {
	out := make([]BackendMessage, len(messages))
	for i, m := range messages {
		out[i] = BackendMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// toolResultContent renders a ToolResult as the text folded back into the
// Conversation Log for the model's next iteration.
func toolResultContent(result *ToolResult) string {
	if result == nil {
		return "{}"
	}
	if result.IsError {
		out, err := json.Marshal(map[string]string{"error": result.Error})
		if err != nil {
			return result.Error
		}
		return string(out)
	}
	if len(result.Value) == 0 {
		return "{}"
	}
	return string(result.Value)
}
