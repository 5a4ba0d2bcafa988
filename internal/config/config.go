// Package config loads the engine configuration from a YAML file with
// environment variable expansion, so API keys stay out of the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/canopy/pkg/llm"
)

// MCPConfig locates the tool server.
type MCPConfig struct {
	// URL of the MCP endpoint, e.g. http://127.0.0.1:8000/sse.
	URL string `yaml:"url"`
	// Transport kind: "sse" (default) or "http" for streamable HTTP.
	Transport string `yaml:"transport"`
}

// SandboxConfig configures the interpreter backend.
type SandboxConfig struct {
	// Command is the runtime executable (default "deno").
	Command string `yaml:"command"`
	// Module is the sandbox entrypoint module specifier.
	Module string `yaml:"module"`
	// SessionsDir is where the interpreter persists session state.
	SessionsDir string `yaml:"sessions_dir"`
	// AllowNet lets sandboxed code open network connections; the MCP
	// back-connection requires it.
	AllowNet bool `yaml:"allow_net"`
}

// RedisConfig enables shared binding storage and cross-replica locking.
// When Addr is empty the engine keeps bindings in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// Duration decodes "90s" style YAML values into a time.Duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// LimitsConfig bounds one agent run.
type LimitsConfig struct {
	MaxTurns            int      `yaml:"max_turns"`
	MaxReflectionRounds int      `yaml:"max_reflection_rounds"`
	MaxSelectedTools    int      `yaml:"max_selected_tools"`
	RunTimeout          Duration `yaml:"run_timeout"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the root configuration document.
type Config struct {
	// Act writes the code; Reflect reviews it and selects tools.
	Act     llm.Config `yaml:"act"`
	Reflect llm.Config `yaml:"reflect"`

	MCP     MCPConfig     `yaml:"mcp"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Redis   RedisConfig   `yaml:"redis"`
	Limits  LimitsConfig  `yaml:"limits"`
	Server  ServerConfig  `yaml:"server"`

	// BasePrompt prepends domain instructions to the system prompt.
	BasePrompt string `yaml:"base_prompt"`
	// AuditDir enables snippet audit logging when set.
	AuditDir string `yaml:"audit_dir"`
}

// Default returns a configuration that works against local development
// defaults; only the model API keys are genuinely required.
func Default() Config {
	return Config{
		Act: llm.Config{
			Provider: llm.ProviderAnthropic,
			APIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		},
		Reflect: llm.Config{
			Provider: llm.ProviderAnthropic,
			APIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		},
		MCP: MCPConfig{
			URL:       "http://127.0.0.1:8000/sse",
			Transport: "sse",
		},
		Sandbox: SandboxConfig{
			Command:     "deno",
			SessionsDir: "./sessions",
			AllowNet:    true,
		},
		Redis: RedisConfig{
			Prefix: "canopy:",
		},
		Limits: LimitsConfig{
			MaxTurns:            25,
			MaxReflectionRounds: 3,
			MaxSelectedTools:    15,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load reads a YAML config file on top of the defaults. ${VAR} references
// in the file are expanded from the environment before decoding.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
