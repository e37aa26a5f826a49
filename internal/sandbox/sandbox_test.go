package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestValidatePathRejectsEscape(t *testing.T) {
	dir := t.TempDir()
	sb, err := New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := sb.ValidatePath("../outside"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
	if _, err := sb.ValidatePath("a/../../outside"); err == nil {
		t.Fatal("expected nested traversal to be rejected")
	}

	resolved, err := sb.ValidatePath("nested/file.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(resolved) != filepath.Join(dir, "nested") {
		t.Fatalf("unexpected resolved path: %s", resolved)
	}
}

func TestExecRunsWithinRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "marker.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write marker: %v", err)
	}
	sb, err := New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := sb.Exec(context.Background(), "ls", time.Second, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d: %s", res.ExitCode, res.Stderr)
	}
	if !contains(res.Stdout, "marker.txt") {
		t.Fatalf("expected stdout to list marker.txt, got %q", res.Stdout)
	}
}

func TestExecTimeout(t *testing.T) {
	dir := t.TempDir()
	sb, err := New(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = sb.Exec(context.Background(), "sleep 1", 10*time.Millisecond, "")
	if err == nil {
		t.Fatal("expected timeout to surface as an error")
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
