package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileReadTool_WholeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := &FileReadTool{}
	params, _ := json.Marshal(map[string]string{"path": path})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var out struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(result.Value, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Lines) != 3 || out.Lines[0] != "one" || out.Lines[2] != "three" {
		t.Fatalf("got %+v", out.Lines)
	}
}

func TestFileReadTool_Range(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tool := &FileReadTool{}
	params, _ := json.Marshal(map[string]any{
		"path":  path,
		"range": map[string]int{"start": 2, "end": 3},
	})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var out struct {
		Lines []string `json:"lines"`
	}
	if err := json.Unmarshal(result.Value, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Lines) != 2 || out.Lines[0] != "two" || out.Lines[1] != "three" {
		t.Fatalf("got %+v", out.Lines)
	}
}

func TestFileReadTool_NotFound(t *testing.T) {
	tool := &FileReadTool{}
	params, _ := json.Marshal(map[string]string{"path": "/nonexistent/path/a.txt"})
	if _, err := tool.Execute(context.Background(), params); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
