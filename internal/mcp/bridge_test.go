package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestSafeToolNameJoinsServerAndTool(t *testing.T) {
	used := map[string]struct{}{}
	got := safeToolName("github", "search_issues", used)
	if got != "github__search_issues" {
		t.Fatalf("safeToolName = %q, want github__search_issues", got)
	}
}

func TestSafeToolNameSanitizes(t *testing.T) {
	used := map[string]struct{}{}
	got := safeToolName("My Server!", "Weird/Tool.Name", used)
	if strings.ContainsAny(got, " !/.") {
		t.Fatalf("safeToolName left unsafe characters: %q", got)
	}
	if got != strings.ToLower(got) {
		t.Fatalf("safeToolName did not lowercase: %q", got)
	}
}

func TestSafeToolNameDeduplicates(t *testing.T) {
	used := map[string]struct{}{}
	first := safeToolName("srv", "tool", used)
	second := safeToolName("srv", "tool", used)
	if first == second {
		t.Fatalf("expected distinct names for a collision, got %q twice", first)
	}
}

func TestSafeToolNameCapsLength(t *testing.T) {
	used := map[string]struct{}{}
	got := safeToolName(strings.Repeat("s", 60), strings.Repeat("t", 60), used)
	if len(got) > maxToolNameLen {
		t.Fatalf("safeToolName length %d exceeds cap %d", len(got), maxToolNameLen)
	}
}

func TestFormatToolCallResultJoinsText(t *testing.T) {
	result := &ToolCallResult{
		Content: []ToolResultContent{
			{Type: "text", Text: "line one"},
			{Type: "text", Text: "line two"},
		},
	}
	text, isError := formatToolCallResult(result)
	if isError {
		t.Fatal("unexpected error flag")
	}
	if text != "line one\nline two" {
		t.Fatalf("formatToolCallResult = %q", text)
	}
}

func TestFormatToolCallResultPropagatesIsError(t *testing.T) {
	result := &ToolCallResult{
		IsError: true,
		Content: []ToolResultContent{{Type: "text", Text: "boom"}},
	}
	text, isError := formatToolCallResult(result)
	if !isError || text != "boom" {
		t.Fatalf("formatToolCallResult = (%q, %v), want (boom, true)", text, isError)
	}
}

type stubCaller struct {
	lastServer string
	lastTool   string
	lastArgs   map[string]any
	result     *ToolCallResult
	err        error
}

func (s *stubCaller) CallTool(ctx context.Context, serverID, toolName string, arguments map[string]any) (*ToolCallResult, error) {
	s.lastServer, s.lastTool, s.lastArgs = serverID, toolName, arguments
	return s.result, s.err
}

func TestToolBridgeDelegatesToCaller(t *testing.T) {
	caller := &stubCaller{result: &ToolCallResult{Content: []ToolResultContent{{Type: "text", Text: "ok"}}}}
	tool := &MCPTool{Name: "search", Description: "search things"}
	bridge := NewToolBridge(caller, "github", tool, "github__search")

	out, isError := bridge.Execute(context.Background(), json.RawMessage(`{"query":"bugs"}`))
	if isError || out != "ok" {
		t.Fatalf("Execute() = (%q, %v), want (ok, false)", out, isError)
	}
	if caller.lastServer != "github" || caller.lastTool != "search" {
		t.Fatalf("bridge called (%s, %s), want (github, search)", caller.lastServer, caller.lastTool)
	}
	if caller.lastArgs["query"] != "bugs" {
		t.Fatalf("arguments not forwarded: %v", caller.lastArgs)
	}
}

func TestToolBridgeDefaultsEmptySchema(t *testing.T) {
	bridge := NewToolBridge(&stubCaller{}, "srv", &MCPTool{Name: "t"}, "srv__t")
	var decoded map[string]any
	if err := json.Unmarshal(bridge.Schema(), &decoded); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if decoded["type"] != "object" {
		t.Fatalf("default schema = %v, want an object schema", decoded)
	}
}
