package subagent

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/cordialrun/agentrt/internal/agent"
	"github.com/cordialrun/agentrt/internal/llm"
	"github.com/cordialrun/agentrt/internal/toolregistry"
)

// recordingProvider completes every request with one text turn and records
// the tool definitions it was offered.
type recordingProvider struct {
	toolNames []string
	reply     string
}

func (p *recordingProvider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.CompletionChunk, error) {
	p.toolNames = nil
	for _, t := range req.Tools {
		p.toolNames = append(p.toolNames, t.Name)
	}
	out := make(chan llm.CompletionChunk, 2)
	out <- llm.CompletionChunk{TextDelta: p.reply}
	out <- llm.CompletionChunk{Done: true, StopReason: llm.StopEndTurn, InputTokens: 5, OutputTokens: 5}
	close(out)
	return out, nil
}

func (p *recordingProvider) CountTokens(ctx context.Context, req llm.CompletionRequest) (int, error) {
	return 0, nil
}

func (p *recordingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResult, error) {
	return &llm.CompletionResult{Text: p.reply}, nil
}

func TestRunReturnsAccumulatedText(t *testing.T) {
	provider := &recordingProvider{reply: "child findings"}
	reg := toolregistry.New(nil)
	spawner := New(reg, provider, agent.DefaultConfig())

	text, isError := spawner.Run(context.Background(), "investigate")
	if isError {
		t.Fatalf("unexpected error: %s", text)
	}
	if text != "child findings" {
		t.Fatalf("Run() = %q, want the child's assistant text", text)
	}
}

func TestChildRegistryExcludesCreateSubagent(t *testing.T) {
	provider := &recordingProvider{reply: "ok"}
	reg := toolregistry.New(nil)
	spawner := New(reg, provider, agent.DefaultConfig())
	if err := reg.RegisterTool(spawner.Tool()); err != nil {
		t.Fatalf("register spawn tool: %v", err)
	}
	err := reg.Register("probe", "a probe tool", json.RawMessage(`{}`), func(ctx context.Context, args json.RawMessage) (string, bool) {
		return "probed", false
	}, "")
	if err != nil {
		t.Fatalf("register probe: %v", err)
	}

	if _, isError := spawner.Run(context.Background(), "task"); isError {
		t.Fatal("unexpected subagent error")
	}

	for _, name := range provider.toolNames {
		if name == ToolName {
			t.Fatalf("child was offered %s: recursion not broken", ToolName)
		}
	}
	found := false
	for _, name := range provider.toolNames {
		if name == "probe" {
			found = true
		}
	}
	if !found {
		t.Fatalf("child missing the parent's other tools, got %v", provider.toolNames)
	}

	// The parent registry itself is untouched.
	parentHas := false
	for _, name := range reg.Names() {
		if name == ToolName {
			parentHas = true
		}
	}
	if !parentHas {
		t.Fatal("cloning for the child removed create_subagent from the parent")
	}
}

func TestSpawnToolValidatesTask(t *testing.T) {
	provider := &recordingProvider{reply: "ok"}
	spawner := New(toolregistry.New(nil), provider, agent.DefaultConfig())
	tool := spawner.Tool()

	if out, isError := tool.Execute(context.Background(), json.RawMessage(`{}`)); !isError || !strings.Contains(out, "task is required") {
		t.Fatalf("expected a task-required error, got (%q, %v)", out, isError)
	}
}

func TestSpawnToolRunsTask(t *testing.T) {
	provider := &recordingProvider{reply: "delegated result"}
	spawner := New(toolregistry.New(nil), provider, agent.DefaultConfig())
	tool := spawner.Tool()

	input, _ := json.Marshal(map[string]string{"task": "summarise the logs"})
	out, isError := tool.Execute(context.Background(), input)
	if isError {
		t.Fatalf("unexpected error: %s", out)
	}
	if out != "delegated result" {
		t.Fatalf("Execute() = %q, want the child's reply", out)
	}
}
