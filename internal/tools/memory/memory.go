// Package memory implements the memory tool: a file-backed key/value
// store rooted inside a sandbox directory, exposing view, write,
// and delete sub-operations. Keys are file names; values are file
// contents.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cordialrun/agentrt/internal/tools/files"
)

// Tool is the memory tool, rooted at a directory supplied at construction.
type Tool struct {
	root     string
	resolver files.Resolver
}

// New creates a memory tool rooted at dir. The directory is created lazily
// on first write if it does not yet exist.
func New(dir string) *Tool {
	return &Tool{root: dir, resolver: files.NewResolver(dir)}
}

func (t *Tool) Name() string { return "memory" }

func (t *Tool) Description() string {
	return "View, write, or delete entries in a durable key/value memory store (view with no key lists all keys)."
}

// FileParam names the argument identifying the entry to lock.
func (t *Tool) FileParam() string { return "key" }

func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"operation": map[string]interface{}{
				"type":        "string",
				"description": "One of: view, write, delete.",
			},
			"key": map[string]interface{}{
				"type":        "string",
				"description": "Entry name. Required for write and delete; optional for view (omit to list all keys).",
			},
			"value": map[string]interface{}{
				"type":        "string",
				"description": "Content to store. Required for write.",
			},
		},
		"required": []string{"operation"},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (string, bool) {
	_ = ctx
	var input struct {
		Operation string `json:"operation"`
		Key       string `json:"key"`
		Value     string `json:"value"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return toolError(fmt.Sprintf("invalid parameters: %v", err))
	}

	switch strings.ToLower(strings.TrimSpace(input.Operation)) {
	case "view":
		return t.view(input.Key)
	case "write":
		return t.write(input.Key, input.Value)
	case "delete":
		return t.delete(input.Key)
	default:
		return toolError("operation must be view, write, or delete")
	}
}

func (t *Tool) view(key string) (string, bool) {
	if strings.TrimSpace(key) == "" {
		return t.listKeys()
	}
	resolved, err := t.resolver.Resolve(key)
	if err != nil {
		return toolError(err.Error())
	}
	data, err := os.ReadFile(resolved)
	if os.IsNotExist(err) {
		return toolError(fmt.Sprintf("no memory entry named %q", key))
	}
	if err != nil {
		return toolError(fmt.Sprintf("read entry: %v", err))
	}
	return string(data), false
}

func (t *Tool) listKeys() (string, bool) {
	root := strings.TrimSpace(t.root)
	if root == "" {
		root = "."
	}
	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		payload, _ := json.MarshalIndent(map[string]interface{}{"keys": []string{}}, "", "  ")
		return string(payload), false
	}
	if err != nil {
		return toolError(fmt.Sprintf("list entries: %v", err))
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		keys = append(keys, entry.Name())
	}
	sort.Strings(keys)
	payload, err := json.MarshalIndent(map[string]interface{}{"keys": keys}, "", "  ")
	if err != nil {
		return toolError(fmt.Sprintf("encode result: %v", err))
	}
	return string(payload), false
}

func (t *Tool) write(key, value string) (string, bool) {
	if strings.TrimSpace(key) == "" {
		return toolError("key is required")
	}
	resolved, err := t.resolver.Resolve(key)
	if err != nil {
		return toolError(err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return toolError(fmt.Sprintf("create memory directory: %v", err))
	}
	if err := os.WriteFile(resolved, []byte(value), 0o644); err != nil {
		return toolError(fmt.Sprintf("write entry: %v", err))
	}
	payload, _ := json.MarshalIndent(map[string]interface{}{"key": key, "bytes": len(value)}, "", "  ")
	return string(payload), false
}

func (t *Tool) delete(key string) (string, bool) {
	if strings.TrimSpace(key) == "" {
		return toolError("key is required")
	}
	resolved, err := t.resolver.Resolve(key)
	if err != nil {
		return toolError(err.Error())
	}
	if err := os.Remove(resolved); err != nil {
		if os.IsNotExist(err) {
			return toolError(fmt.Sprintf("no memory entry named %q", key))
		}
		return toolError(fmt.Sprintf("delete entry: %v", err))
	}
	payload, _ := json.MarshalIndent(map[string]interface{}{"key": key, "deleted": true}, "", "  ")
	return string(payload), false
}

func toolError(message string) (string, bool) {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return message, true
	}
	return string(payload), true
}
