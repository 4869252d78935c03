package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// FileWriteTool overwrites a file with either a single string or a
// sequence of lines, mirroring the original file_write tool. Like the
// original, the array form writes lines sequentially rather than honouring
// individual line numbers.
type FileWriteTool struct{}

var fileWriteSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "The path to the file to be written."},
		"content": {
			"description": "The content to write. A single string overwrites the whole file; an array of line-content pairs is written sequentially.",
			"anyOf": [
				{"type": "string"},
				{
					"type": "array",
					"items": {
						"type": "object",
						"properties": {
							"line": {"type": "integer"},
							"content": {"type": "string"}
						},
						"required": ["content"]
					}
				}
			]
		}
	},
	"required": ["path", "content"]
}`)

func (t *FileWriteTool) Name() string            { return "file_write" }
func (t *FileWriteTool) Schema() json.RawMessage { return fileWriteSchema }
func (t *FileWriteTool) Description() string {
	return "Writes or overwrites content to a file at a given path. Content can be a single string or an array of line entries."
}

type fileWriteLine struct {
	Line    int    `json:"line"`
	Content string `json:"content"`
}

func (t *FileWriteTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var envelope struct {
		Path    string          `json:"path"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(params, &envelope); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("decode parameters: %w", err))
	}

	var body string
	var asString string
	var asLines []fileWriteLine

	switch {
	case json.Unmarshal(envelope.Content, &asString) == nil:
		body = asString
	case json.Unmarshal(envelope.Content, &asLines) == nil:
		var b strings.Builder
		for _, line := range asLines {
			b.WriteString(line.Content)
			b.WriteByte('\n')
		}
		body = b.String()
	default:
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("invalid 'content' format: must be a string or an array of line-content objects"))
	}

	if err := os.WriteFile(envelope.Path, []byte(body), 0o644); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("failed to write file: %w", err))
	}

	value, err := json.Marshal(map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully wrote to file: %s", envelope.Path),
	})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
}
