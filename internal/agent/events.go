package agent

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	// EventAiResponseChunk carries safe-to-display text as it streams in.
	EventAiResponseChunk EventKind = iota
	// EventPendingDisplayContent carries the display text that preceded a
	// completed open fence, committed just before the parser enters InBlock
	// state.
	EventPendingDisplayContent
	// EventAttemptingToolDetection marks the parser entering InBlock state.
	EventAttemptingToolDetection
	// EventToolCallDetected carries a fully parsed, schema-pending call.
	EventToolCallDetected
	// EventToolExecuting marks the orchestrator about to run a tool.
	EventToolExecuting
	// EventToolResult carries a tool's successful output.
	EventToolResult
	// EventToolError carries a tool's classified failure.
	EventToolError
	// EventToolBlockParseWarning marks a fenced block that never parsed as
	// a structured document at all.
	EventToolBlockParseWarning
	// EventYamlParseError marks a fenced block that parsed but did not
	// match the {tool_name, parameters} schema.
	EventYamlParseError
	// EventThinking carries a free-form progress note (diagnostics,
	// context-size estimates, etc.) that is not part of the transcript.
	EventThinking
	// EventAddMessageToHistory mirrors a message the orchestrator just
	// appended to the Conversation Log, for UIs that render history
	// reactively instead of re-reading snapshots.
	EventAddMessageToHistory
	// EventUserMessageAdded confirms a user message was appended before a
	// turn starts.
	EventUserMessageAdded
	// EventError marks a fatal-to-the-turn error (backend or decode
	// failure); the turn closes after this event.
	EventError
)

// Event is the tagged variant the Agent Orchestrator and Streaming Parser
// emit. Consumers must treat unrecognised future Kind values as no-ops.
type Event struct {
	Kind EventKind

	Text       string     // AiResponseChunk, PendingDisplayContent
	ToolCall   *ToolCall  // ToolCallDetected
	ToolName   string     // ToolExecuting, ToolResult, ToolError
	ToolResult *ToolResult // ToolResult
	Message    string     // ToolError, YamlParseError, Thinking
	Raw        string     // ToolBlockParseWarning, YamlParseError
	Added      *Message   // AddMessageToHistory
	Err        error      // Error
}
