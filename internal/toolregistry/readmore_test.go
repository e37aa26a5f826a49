package toolregistry

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestReadMoreToolRoundTripsAllPages(t *testing.T) {
	r := New(nil)
	r.SetPageLimits(PageBytes, PageBytes)
	big := strings.Repeat("x", PageBytes) + strings.Repeat("y", PageBytes)
	mustRegister(t, r, "big", `{}`, func(ctx context.Context, arguments json.RawMessage) (string, bool) {
		return big, false
	}, "")

	tool := NewReadMoreTool(r)
	if err := r.RegisterTool(tool); err != nil {
		t.Fatalf("RegisterTool: %v", err)
	}

	first, isError := r.Execute(context.Background(), "t1", "big", json.RawMessage(`{}`))
	if isError {
		t.Fatalf("unexpected error: %s", first)
	}
	idx := strings.Index(first, `result_id="`)
	if idx == -1 {
		t.Fatalf("no result_id pointer in %q", first[:60])
	}
	rest := first[idx+len(`result_id="`):]
	id := rest[:strings.Index(rest, `"`)]

	args2, _ := json.Marshal(map[string]any{"result_id": id, "page": 2})
	page2, isError := r.Execute(context.Background(), "t2", "read_more", args2)
	if isError {
		t.Fatalf("unexpected error: %s", page2)
	}

	firstPage := strings.SplitN(first, "\n[truncated", 2)[0]
	reassembled := firstPage + strings.SplitN(page2, "\n[truncated", 2)[0]
	if reassembled != big {
		t.Fatalf("reassembled output does not match original: got %d bytes, want %d", len(reassembled), len(big))
	}
}

func TestReadMoreToolUnknownResultID(t *testing.T) {
	r := New(nil)
	tool := NewReadMoreTool(r)

	args, _ := json.Marshal(map[string]any{"result_id": "nope", "page": 1})
	_, isError := tool.Execute(context.Background(), args)
	if !isError {
		t.Fatal("expected error for unknown result_id")
	}
}
