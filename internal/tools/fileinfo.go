package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// FileInfoTool reports metadata about a path, mirroring the original
// file_info tool. Go's os.FileInfo exposes neither creation time nor a
// readonly permission bit portably, so this reports modified time and the
// Unix permission bits instead of a boolean readonly flag.
type FileInfoTool struct{}

var fileInfoSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"path": {"type": "string", "description": "The path to the file or directory."}
	},
	"required": ["path"]
}`)

func (t *FileInfoTool) Name() string            { return "file_info" }
func (t *FileInfoTool) Schema() json.RawMessage { return fileInfoSchema }
func (t *FileInfoTool) Description() string {
	return "Retrieves detailed information about a file or directory at a given path."
}

type fileInfoParams struct {
	Path string `json:"path"`
}

func (t *FileInfoTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p fileInfoParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("decode parameters: %w", err))
	}

	info, err := os.Stat(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("no such file or directory: %s", p.Path))
		}
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("failed to get metadata: %w", err))
	}

	fileType := "other"
	switch {
	case info.IsDir():
		fileType = "directory"
	case info.Mode().IsRegular():
		fileType = "file"
	}

	value, err := json.Marshal(map[string]any{
		"path":                p.Path,
		"type":                fileType,
		"size_bytes":          info.Size(),
		"permissions":         info.Mode().Perm().String(),
		"modified_timestamp":  info.ModTime().Unix(),
	})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
}
