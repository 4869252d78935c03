package agent

import (
	"context"
	"encoding/json"
)

// Tool is a named capability the model can invoke through a fenced
// tool-call block. Implementations must be safe for concurrent Execute
// calls: the Orchestrator serialises calls within one turn, but the
// Session may run unrelated turns or diagnostics concurrently.
type Tool interface {
	// Name is the identifier the model references in tool_name. Must be
	// unique within a ToolRegistry.
	Name() string

	// Description helps the model decide when to use the tool. It is
	// embedded verbatim in the system prompt's schema descriptor.
	Description() string

	// Schema is the JSON Schema describing Parameters, embedded verbatim
	// in the system prompt and used to validate calls before dispatch.
	Schema() json.RawMessage

	// Execute runs the tool against already-schema-validated parameters.
	Execute(ctx context.Context, params json.RawMessage) (*ToolResult, error)
}

// ToolCall is a single invocation parsed from the model's stream by the
// Streaming Parser. It is transient: it exists only between detection and
// execution.
type ToolCall struct {
	ToolName   string
	Parameters json.RawMessage
}

// ToolResult is what a Tool execution produced, or the classified error if
// it failed. Exactly one of Value/Error should be considered meaningful;
// IsError mirrors which one for serialisation convenience.
type ToolResult struct {
	ToolName string
	Value    json.RawMessage
	IsError  bool
	Error    string
}
