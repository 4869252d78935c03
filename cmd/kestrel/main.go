// Command kestrel is a terminal client for chatting with a local,
// Ollama-style model that does not support native function calling. Tool
// calls are parsed in-band from the model's own text via a fenced block
// convention (see internal/agent's StreamingParser).
//
// Basic usage:
//
//	kestrel chat --config kestrel.yaml
//
// Configuration can be provided via a YAML file (--config, default
// kestrel.yaml) or environment variables referenced from it with ${VAR}.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kestrelchat/kestrel/internal/agent"
	"github.com/kestrelchat/kestrel/internal/backend/ollama"
	"github.com/kestrelchat/kestrel/internal/config"
	"github.com/kestrelchat/kestrel/internal/tokencount"
	"github.com/kestrelchat/kestrel/internal/tools"
)

var (
	version = "dev"

	configPath string
	modelFlag  string
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "kestrel",
		Short:   "A terminal client for tool-using chat with local models",
		Version: version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "kestrel.yaml", "path to the configuration file")
	root.PersistentFlags().StringVar(&modelFlag, "model", "", "override the configured default model")

	root.AddCommand(newChatCommand())
	return root
}

func newChatCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}
}

func runChat() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("kestrel: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	model := cfg.Backend.DefaultModel
	if modelFlag != "" {
		model = modelFlag
	}

	backend := ollama.New(ollama.Config{
		BaseURL:        cfg.Backend.BaseURL,
		Timeout:        cfg.Backend.Timeout,
		LegacyToolRole: cfg.Backend.LegacyToolRole,
	})

	registry := agent.NewToolRegistry()
	registerTools(registry, cfg, logger)

	orchestrator := agent.NewOrchestrator(backend, registry, logger, cfg.Agent.MaxIterations)
	if counter, err := tokencount.NewCounter(""); err == nil {
		orchestrator.SetContextWatermark(counter.CountLog, cfg.Agent.ContextWatermark)
	} else {
		logger.Warn("token counter unavailable, context watermark diagnostic disabled", "error", err)
	}
	systemPrompt := cfg.Agent.SystemPrompt + "\n\n" + toolDescriptorPrompt(registry)
	session := agent.NewSession(backend, orchestrator, systemPrompt, model, logger)

	repl := newREPL(session, logger)
	return repl.Run(os.Stdin, os.Stdout)
}

func registerTools(registry *agent.ToolRegistry, cfg *config.Config, logger *slog.Logger) {
	toolList := []agent.Tool{
		&tools.ShellTool{Timeout: cfg.Agent.ToolTimeout},
		&tools.FileReadTool{},
		&tools.FileWriteTool{},
		&tools.FileInfoTool{},
		&tools.WebFetchTool{},
		&tools.WebSearchTool{}, // no SearchBackend wired by default; see DESIGN.md
	}
	for _, t := range toolList {
		if err := registry.Register(t); err != nil {
			logger.Error("failed to register tool", "tool", t.Name(), "error", err)
		}
	}
}

// toolDescriptorPrompt embeds the registry's schema listing and the fenced
// call convention into the system prompt, so the model knows both what
// tools exist and exactly how to invoke one.
func toolDescriptorPrompt(registry *agent.ToolRegistry) string {
	return fmt.Sprintf(`You have the following tools available:

%s

To call a tool, emit exactly this format and then stop writing until you
receive the result:

%s
tool_name: <name>
parameters:
  <key>: <value>
%s
`, string(registry.SchemaDescriptor()), agent.DefaultOpenFence, agent.DefaultCloseFence)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
