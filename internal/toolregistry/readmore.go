package toolregistry

import (
	"context"
	"encoding/json"
	"fmt"
)

// ReadMoreTool exposes Registry.ReadMore as an ordinary registered tool, so
// the model can retrieve subsequent pages of an oversized result the same
// way it calls any other tool. It is not auto-registered by New: an
// embedder registers it explicitly, the same way it registers
// file/exec/memory tools, once the registry it should page against exists.
type ReadMoreTool struct {
	registry *Registry
}

// NewReadMoreTool creates a read_more tool bound to registry's page cache.
func NewReadMoreTool(registry *Registry) *ReadMoreTool {
	return &ReadMoreTool{registry: registry}
}

func (t *ReadMoreTool) Name() string { return "read_more" }

func (t *ReadMoreTool) Description() string {
	return "Retrieve a subsequent page of a previously truncated, oversized tool result."
}

// FileParam is empty: read_more identifies a cached result, not a file.
func (t *ReadMoreTool) FileParam() string { return "" }

func (t *ReadMoreTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"required": ["result_id", "page"],
		"properties": {
			"result_id": {"type": "string", "description": "The result_id from a truncated tool result."},
			"page": {"type": "integer", "minimum": 1, "description": "1-indexed page number to retrieve."}
		}
	}`)
}

func (t *ReadMoreTool) Execute(ctx context.Context, arguments json.RawMessage) (string, bool) {
	var args struct {
		ResultID string `json:"result_id"`
		Page     int    `json:"page"`
	}
	if err := json.Unmarshal(arguments, &args); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), true
	}

	text, hasMore, err := t.registry.ReadMore(args.ResultID, args.Page)
	if err != nil {
		return err.Error(), true
	}
	if hasMore {
		text = fmt.Sprintf("%s\n[truncated; call read_more(result_id=%q, page=%d) for more]", text, args.ResultID, args.Page+1)
	}
	return text, false
}
