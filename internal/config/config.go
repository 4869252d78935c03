// Package config loads this module's YAML configuration: the backend
// endpoint, default model, agent loop limits, and logging options.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Backend BackendConfig `yaml:"backend"`
	Agent   AgentConfig   `yaml:"agent"`
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig points at the Ollama-style model server.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url"`
	DefaultModel   string        `yaml:"default_model"`
	Timeout        time.Duration `yaml:"timeout"`
	LegacyToolRole bool          `yaml:"legacy_tool_role"`
}

// AgentConfig bounds the agent loop and tool execution.
type AgentConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	SystemPrompt     string        `yaml:"system_prompt"`
	ContextWatermark int           `yaml:"context_watermark_tokens"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool   `yaml:"json"`
}

// Load reads path, expands ${VAR} environment references, applies
// defaults, and validates the result. A missing file is not an error: a
// default configuration is returned instead, since every field has a
// usable default and the CLI's own flags can still override it.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := os.ExpandEnv(string(data))
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("config: %s must contain a single YAML document", path)
	}

	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:      "http://localhost:11434",
			DefaultModel: "llama3",
			Timeout:      2 * time.Minute,
		},
		Agent: AgentConfig{
			MaxIterations:    8,
			ToolTimeout:      30 * time.Second,
			SystemPrompt:     defaultSystemPrompt,
			ContextWatermark: 6000,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:11434"
	}
	if cfg.Backend.Timeout <= 0 {
		cfg.Backend.Timeout = 2 * time.Minute
	}
	if cfg.Agent.MaxIterations <= 0 {
		cfg.Agent.MaxIterations = 8
	}
	if cfg.Agent.ToolTimeout <= 0 {
		cfg.Agent.ToolTimeout = 30 * time.Second
	}
	if strings.TrimSpace(cfg.Agent.SystemPrompt) == "" {
		cfg.Agent.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Agent.ContextWatermark <= 0 {
		cfg.Agent.ContextWatermark = 6000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

func validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level must be one of debug, info, warn, error; got %q", cfg.Logging.Level)
	}
	if cfg.Agent.MaxIterations < 1 {
		return fmt.Errorf("config: agent.max_iterations must be at least 1")
	}
	return nil
}

const defaultSystemPrompt = `You are a helpful terminal assistant with access to tools for reading and writing files, running shell commands, and fetching or searching the web. When a task needs a tool, emit a fenced tool call in the exact format you have been shown and wait for its result before continuing.`
