package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentrt.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: anthropic
  api_key: test-key
agent:
  model: claude-sonnet-4-5
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", cfg.Agent.MaxTokens)
	}
	if cfg.Agent.MaxToolIterations != 25 {
		t.Errorf("MaxToolIterations = %d, want 25", cfg.Agent.MaxToolIterations)
	}
	if cfg.Agent.CompactThreshold != 0.8 {
		t.Errorf("CompactThreshold = %v, want 0.8", cfg.Agent.CompactThreshold)
	}
	if cfg.Agent.CompactProtectLastK != 3 {
		t.Errorf("CompactProtectLastK = %d, want 3", cfg.Agent.CompactProtectLastK)
	}
	if cfg.Agent.MaxInlineBytes != 30*1024 || cfg.Agent.PageBytes != 8*1024 {
		t.Errorf("page limits = (%d, %d), want (30720, 8192)", cfg.Agent.MaxInlineBytes, cfg.Agent.PageBytes)
	}
	if cfg.Agent.EventStoreTTL != 10*time.Minute {
		t.Errorf("EventStoreTTL = %v, want 10m", cfg.Agent.EventStoreTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging defaults = (%s, %s), want (info, json)", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: smoke-signals
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected a validation error for an unknown provider")
	}
	if !strings.Contains(err.Error(), "provider.name") {
		t.Fatalf("error does not name the offending field: %v", err)
	}
}

func TestLoadAggregatesValidationIssues(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: nope
agent:
  compact_threshold: 1.5
logging:
  level: shout
`)
	_, err := Load(path)
	verr, ok := err.(*ConfigValidationError)
	if !ok {
		t.Fatalf("expected a ConfigValidationError, got %T: %v", err, err)
	}
	if len(verr.Issues) != 3 {
		t.Fatalf("issues = %v, want all 3 reported in one pass", verr.Issues)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
provider:
  name: anthropic
agentt:
  model: typo
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected a strict-decoding error for a misspelled key")
	}
}

func TestLoadRejectsNewerVersion(t *testing.T) {
	path := writeConfig(t, `
version: 99
provider:
  name: anthropic
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "newer than this build") {
		t.Fatalf("expected a version error, got %v", err)
	}
}

func TestEnvOverridesModelAndProvider(t *testing.T) {
	t.Setenv("AGENTRT_MODEL", "env-model")
	t.Setenv("AGENTRT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "env-key")

	path := writeConfig(t, `
provider:
  name: anthropic
agent:
  model: file-model
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.Model != "env-model" {
		t.Errorf("Model = %q, want the env override", cfg.Agent.Model)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.APIKey != "env-key" {
		t.Errorf("provider = (%s, %s), want the env override and matching key", cfg.Provider.Name, cfg.Provider.APIKey)
	}
}

func TestIncludeMergesBaseFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(base, []byte(`
logging:
  level: debug
provider:
  name: anthropic
  api_key: base-key
`), 0o644); err != nil {
		t.Fatal(err)
	}
	main := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(main, []byte(`
$include: base.yaml
agent:
  model: merged-model
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(main)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want the included file's value", cfg.Logging.Level)
	}
	if cfg.Agent.Model != "merged-model" {
		t.Errorf("Model = %q, want the including file's value", cfg.Agent.Model)
	}
}
