package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// FileReadTool reads a file as lines, optionally restricted to a 1-indexed
// inclusive [start, end] range, mirroring the original file_read tool.
type FileReadTool struct{}

var fileReadSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {
			"type": "string",
			"description": "The absolute or relative path to the file to be read."
		},
		"range": {
			"type": "object",
			"description": "An optional range of lines to read.",
			"properties": {
				"start": {"type": "integer", "description": "The starting line number (1-indexed)."},
				"end": {"type": "integer", "description": "The ending line number (inclusive)."}
			}
		}
	},
	"required": ["path"]
}`)

func (t *FileReadTool) Name() string            { return "file_read" }
func (t *FileReadTool) Schema() json.RawMessage { return fileReadSchema }
func (t *FileReadTool) Description() string {
	return "Reads the content of a file at a given path, optionally within a line range. Returns the content as an array of lines."
}

type fileReadParams struct {
	Path  string `json:"path"`
	Range *struct {
		Start int `json:"start"`
		End   int `json:"end"`
	} `json:"range"`
}

func (t *FileReadTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p fileReadParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("decode parameters: %w", err))
	}

	file, err := os.Open(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("file not found at path: %s", p.Path))
		}
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("failed to open file: %w", err))
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("failed to read lines: %w", err))
	}

	if p.Range != nil {
		start := p.Range.Start - 1
		if start < 0 {
			start = 0
		}
		end := p.Range.End
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		if start < len(lines) && start <= end {
			lines = lines[start:end]
		} else {
			lines = []string{}
		}
	}
	if lines == nil {
		lines = []string{}
	}

	value, err := json.Marshal(map[string]any{"lines": lines})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
}
