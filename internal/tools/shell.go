// Package tools implements the concrete Tool Registry entries: shell
// execution, file read/write/info, web fetch, and web search.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kestrelchat/kestrel/internal/agent"
)

// ShellTool runs a single command line and reports stdout, stderr and
// success, never treating a non-zero exit as a tool-level error: the model
// sees the failure and decides what to do next, matching the original
// shell tool's Result-always-Ok-unless-spawn-fails behaviour.
//
// The command line is split on whitespace and run directly, not through a
// shell: quoting, pipes and redirection are not interpreted.
type ShellTool struct {
	Timeout time.Duration
}

var shellSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"command_line": {
			"type": "string",
			"description": "The complete shell command line to execute, including command and arguments."
		}
	},
	"required": ["command_line"]
}`)

func (t *ShellTool) Name() string        { return "shell" }
func (t *ShellTool) Description() string { return "Execute a shell command line and return its stdout and stderr." }
func (t *ShellTool) Schema() json.RawMessage { return shellSchema }

type shellParams struct {
	CommandLine string `json:"command_line"`
}

type shellResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	Success  bool   `json:"success"`
	ExitCode *int   `json:"exit_code,omitempty"`
}

func (t *ShellTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var p shellParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindIO, fmt.Errorf("decode parameters: %w", err))
	}

	parts := strings.Fields(p.CommandLine)
	if len(parts) == 0 {
		return nil, agent.NewToolExecutionError(t.Name(), agent.KindShell, fmt.Errorf("empty command line"))
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, parts[0], parts[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if runCtx.Err() != nil {
			return nil, agent.NewToolExecutionError(t.Name(), agent.KindTimeout, runCtx.Err())
		}
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, agent.NewToolExecutionError(t.Name(), agent.KindShell, fmt.Errorf("failed to execute %q: %w", p.CommandLine, err))
		}
		code := exitErr.ExitCode()
		value, merr := json.Marshal(shellResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Success:  false,
			ExitCode: &code,
		})
		if merr != nil {
			return nil, merr
		}
		return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
	}

	value, err := json.Marshal(shellResult{
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Success: true,
	})
	if err != nil {
		return nil, err
	}
	return &agent.ToolResult{ToolName: t.Name(), Value: value}, nil
}
