package main

import (
	"context"
	"testing"

	"github.com/cordialrun/agentrt/internal/config"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"run", "resume", "version"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestNewProviderRejectsUnknownName(t *testing.T) {
	_, err := newProvider(context.Background(), config.ProviderConfig{Name: "carrier-pigeon"})
	if err == nil {
		t.Fatal("expected an error for an unknown provider name")
	}
}

func TestNewProviderDefaultsToAnthropic(t *testing.T) {
	_, err := newProvider(context.Background(), config.ProviderConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("expected the empty provider name to default to anthropic, got error: %v", err)
	}
}
