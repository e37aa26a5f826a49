package files

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestResolverRejectsEscape(t *testing.T) {
	r := NewResolver(t.TempDir())
	for _, path := range []string{"../outside.txt", "a/../../outside.txt", "/etc/passwd"} {
		if _, err := r.Resolve(path); err == nil {
			t.Errorf("Resolve(%q) accepted a path outside the workspace", path)
		}
	}
}

func TestResolverAcceptsNestedRelative(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)
	got, err := r.Resolve("sub/dir/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(got, root) {
		t.Fatalf("resolved path %q not under root %q", got, root)
	}
}

func TestReadToolReadsFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "hello.txt", "hello world")

	tool := NewReadTool(Config{Workspace: dir})
	params, _ := json.Marshal(map[string]any{"path": "hello.txt"})
	out, isError := tool.Execute(context.Background(), params)
	if isError {
		t.Fatalf("unexpected error: %s", out)
	}

	var result struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Content != "hello world" || result.Truncated {
		t.Fatalf("result = %+v, want full content", result)
	}
}

func TestReadToolHonorsOffsetAndLimit(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "data.txt", "abcdefghij")

	tool := NewReadTool(Config{Workspace: dir})
	params, _ := json.Marshal(map[string]any{"path": "data.txt", "offset": 2, "max_bytes": 3})
	out, isError := tool.Execute(context.Background(), params)
	if isError {
		t.Fatalf("unexpected error: %s", out)
	}

	var result struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Content != "cde" || !result.Truncated {
		t.Fatalf("result = %+v, want content=cde truncated=true", result)
	}
}

func TestWriteToolCreatesAndAppends(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriteTool(Config{Workspace: dir})

	params, _ := json.Marshal(map[string]any{"path": "nested/out.txt", "content": "first"})
	if out, isError := tool.Execute(context.Background(), params); isError {
		t.Fatalf("write failed: %s", out)
	}

	params, _ = json.Marshal(map[string]any{"path": "nested/out.txt", "content": " second", "append": true})
	if out, isError := tool.Execute(context.Background(), params); isError {
		t.Fatalf("append failed: %s", out)
	}

	data, err := os.ReadFile(filepath.Join(dir, "nested", "out.txt"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "first second" {
		t.Fatalf("file contents = %q, want %q", data, "first second")
	}
}

func TestWriteToolRejectsTraversal(t *testing.T) {
	tool := NewWriteTool(Config{Workspace: t.TempDir()})
	params, _ := json.Marshal(map[string]any{"path": "../evil.txt", "content": "nope"})
	out, isError := tool.Execute(context.Background(), params)
	if !isError {
		t.Fatalf("expected a traversal rejection, got success: %s", out)
	}
}

func TestEditToolReplacesText(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "cfg.txt", "port = 8080\nport = 8080\n")

	tool := NewEditTool(Config{Workspace: dir})
	params, _ := json.Marshal(map[string]any{
		"path": "cfg.txt",
		"edits": []map[string]any{
			{"old_text": "port = 8080", "new_text": "port = 9090", "replace_all": true},
		},
	})
	out, isError := tool.Execute(context.Background(), params)
	if isError {
		t.Fatalf("edit failed: %s", out)
	}

	var result struct {
		Replacements int `json:"replacements"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Replacements != 2 {
		t.Fatalf("replacements = %d, want 2", result.Replacements)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "cfg.txt"))
	if strings.Contains(string(data), "8080") {
		t.Fatalf("old text survived the edit: %q", data)
	}
}

func TestEditToolFailsOnMissingOldText(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "cfg.txt", "alpha")

	tool := NewEditTool(Config{Workspace: dir})
	params, _ := json.Marshal(map[string]any{
		"path": "cfg.txt",
		"edits": []map[string]any{
			{"old_text": "beta", "new_text": "gamma"},
		},
	})
	out, isError := tool.Execute(context.Background(), params)
	if !isError || !strings.Contains(out, "not found") {
		t.Fatalf("expected an old_text-not-found error, got (%q, %v)", out, isError)
	}
}
