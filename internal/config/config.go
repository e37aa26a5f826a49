// Package config loads the runtime's configuration: the Agent option
// table, the ambient logging/tracing surface, and the external
// collaborators an embedder wires in (skills directory, MCP servers,
// sandbox workspace).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cordialrun/agentrt/internal/mcp"
)

// Config is the top-level configuration for an embedded runtime.
type Config struct {
	// Version is the config file schema version; omitted means current.
	Version int `yaml:"version"`

	Provider ProviderConfig `yaml:"provider"`
	Agent    AgentConfig    `yaml:"agent"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Skills   SkillsConfig   `yaml:"skills"`
	MCP      mcp.Config     `yaml:"mcp"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
}

// ProviderConfig selects and configures the one LLM Provider this
// runtime's Agent is bound to. Name picks the backend; the remaining
// fields are interpreted only by that backend (an API key is meaningless
// to Bedrock, a region is meaningless to Anthropic).
type ProviderConfig struct {
	Name            string `yaml:"name"` // anthropic | openai | google | bedrock
	APIKey          string `yaml:"api_key"`
	BaseURL         string `yaml:"base_url"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// AgentConfig holds the options an embedder sets on agent.Config.
type AgentConfig struct {
	Model               string        `yaml:"model"`
	MaxTokens           int           `yaml:"max_tokens"`
	MaxToolIterations   int           `yaml:"max_tool_iterations"`
	EnablePromptCaching bool          `yaml:"enable_prompt_caching"`
	MaxRetries          int           `yaml:"max_retries"`
	RetryInitialDelay   time.Duration `yaml:"retry_initial_delay"`
	SystemPrompt        string        `yaml:"system_prompt"`
	CompactThreshold    float64       `yaml:"compact_threshold"`
	CompactProtectLastK int           `yaml:"compact_protect_last_k"`
	ContextWindow       int           `yaml:"context_window"`
	MaxInlineBytes      int           `yaml:"max_inline_bytes"`
	PageBytes           int           `yaml:"page_bytes"`
	EventStoreTTL       time.Duration `yaml:"event_store_ttl"`
}

// LoggingConfig controls the slog handler the embedder installs.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig controls OpenTelemetry tracing export.
type TracingConfig struct {
	Enabled      bool              `yaml:"enabled"`
	Endpoint     string            `yaml:"endpoint"`
	ServiceName  string            `yaml:"service_name"`
	SamplingRate float64           `yaml:"sampling_rate"`
	Insecure     bool              `yaml:"insecure"`
	Attributes   map[string]string `yaml:"attributes"`
}

// SkillsConfig points at the skill-file directory the Skill Registry loads.
type SkillsConfig struct {
	Directory string `yaml:"directory"`
}

// SandboxConfig configures the workspace root the file/exec tools resolve
// paths against.
type SandboxConfig struct {
	Workspace string `yaml:"workspace"`
}

// Load reads, resolves $include directives in, and decodes a config file,
// applying environment overrides and defaults before validating it.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	if cfg.Agent.MaxTokens == 0 {
		cfg.Agent.MaxTokens = 4096
	}
	if cfg.Agent.MaxToolIterations == 0 {
		cfg.Agent.MaxToolIterations = 25
	}
	if cfg.Agent.MaxRetries == 0 {
		cfg.Agent.MaxRetries = 3
	}
	if cfg.Agent.RetryInitialDelay == 0 {
		cfg.Agent.RetryInitialDelay = time.Second
	}
	if cfg.Agent.CompactThreshold == 0 {
		cfg.Agent.CompactThreshold = 0.8
	}
	if cfg.Agent.CompactProtectLastK == 0 {
		cfg.Agent.CompactProtectLastK = 3
	}
	if cfg.Agent.MaxInlineBytes == 0 {
		cfg.Agent.MaxInlineBytes = 30 * 1024
	}
	if cfg.Agent.PageBytes == 0 {
		cfg.Agent.PageBytes = 8 * 1024
	}
	if cfg.Agent.EventStoreTTL == 0 {
		cfg.Agent.EventStoreTTL = 10 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Sandbox.Workspace == "" {
		cfg.Sandbox.Workspace = "."
	}
	if cfg.Provider.Name == "" {
		cfg.Provider.Name = "anthropic"
	}
}

func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRT_MODEL")); value != "" {
		cfg.Agent.Model = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRT_LOG_LEVEL")); value != "" {
		cfg.Logging.Level = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRT_WORKSPACE")); value != "" {
		cfg.Sandbox.Workspace = value
	}
	if value := strings.TrimSpace(os.Getenv("AGENTRT_PROVIDER")); value != "" {
		cfg.Provider.Name = value
	}
	if cfg.Provider.APIKey == "" {
		switch strings.ToLower(strings.TrimSpace(cfg.Provider.Name)) {
		case "anthropic":
			cfg.Provider.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		case "openai":
			cfg.Provider.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		case "google":
			cfg.Provider.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
	}
	if cfg.Provider.AccessKeyID == "" {
		cfg.Provider.AccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	}
	if cfg.Provider.SecretAccessKey == "" {
		cfg.Provider.SecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	}
	if cfg.Provider.SessionToken == "" {
		cfg.Provider.SessionToken = strings.TrimSpace(os.Getenv("AWS_SESSION_TOKEN"))
	}
}

// ConfigValidationError aggregates every validation failure found in a
// single pass, so a misconfigured file reports all its problems at once.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}

	var issues []string

	if err := ValidateVersion(cfg.Version); err != nil {
		issues = append(issues, err.Error())
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider.Name)) {
	case "anthropic", "openai", "google", "bedrock":
	default:
		issues = append(issues, fmt.Sprintf("provider.name %q must be anthropic, openai, google, or bedrock", cfg.Provider.Name))
	}
	if cfg.Agent.MaxTokens < 0 {
		issues = append(issues, "agent.max_tokens must be >= 0")
	}
	if cfg.Agent.MaxToolIterations < 0 {
		issues = append(issues, "agent.max_tool_iterations must be >= 0")
	}
	if cfg.Agent.CompactThreshold < 0 || cfg.Agent.CompactThreshold > 1 {
		issues = append(issues, "agent.compact_threshold must be between 0 and 1")
	}
	if cfg.Agent.CompactProtectLastK < 0 {
		issues = append(issues, "agent.compact_protect_last_k must be >= 0")
	}
	if cfg.Agent.MaxInlineBytes < 0 {
		issues = append(issues, "agent.max_inline_bytes must be >= 0")
	}
	if cfg.Agent.PageBytes < 0 {
		issues = append(issues, "agent.page_bytes must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", cfg.Logging.Level))
	}
	if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be between 0 and 1")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
