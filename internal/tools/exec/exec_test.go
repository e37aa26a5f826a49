package exec

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/cordialrun/agentrt/internal/observability"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	logger := observability.NewLogger(observability.LogConfig{Output: io.Discard})
	return NewManager(t.TempDir(), logger)
}

func TestRunSyncCapturesOutput(t *testing.T) {
	m := testManager(t)
	result, err := m.RunCommand(context.Background(), "echo hello", "", nil, "", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Fatalf("stdout = %q, want hello", result.Stdout)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestRunSyncNonZeroExitIsNotAnError(t *testing.T) {
	m := testManager(t)
	result, err := m.RunCommand(context.Background(), "exit 3", "", nil, "", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("exit code = %d, want 3", result.ExitCode)
	}
}

func TestRunSyncPassesStdinAndEnv(t *testing.T) {
	m := testManager(t)
	result, err := m.RunCommand(context.Background(), `cat; printf %s "$GREETING"`, "", map[string]string{"GREETING": "hi"}, "piped ", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stdout != "piped hi" {
		t.Fatalf("stdout = %q, want %q", result.Stdout, "piped hi")
	}
}

func TestRunSyncRejectsCwdOutsideWorkspace(t *testing.T) {
	m := testManager(t)
	_, err := m.RunCommand(context.Background(), "true", "../..", nil, "", time.Second)
	if err == nil {
		t.Fatal("expected a workspace-escape error for cwd")
	}
}

func TestExecToolSynchronous(t *testing.T) {
	tool := NewExecTool("exec", testManager(t))
	params, _ := json.Marshal(map[string]any{"command": "echo from-tool"})
	out, isError := tool.Execute(context.Background(), params)
	if isError {
		t.Fatalf("unexpected error: %s", out)
	}
	if !strings.Contains(out, "from-tool") {
		t.Fatalf("expected stdout in the result, got %s", out)
	}
}

func TestBackgroundProcessLifecycle(t *testing.T) {
	m := testManager(t)
	execTool := NewExecTool("exec", m)
	procTool := NewProcessTool(m)

	params, _ := json.Marshal(map[string]any{"command": "echo bg-done", "background": true})
	out, isError := execTool.Execute(context.Background(), params)
	if isError {
		t.Fatalf("background start failed: %s", out)
	}
	var started struct {
		ProcessID string `json:"process_id"`
	}
	if err := json.Unmarshal([]byte(out), &started); err != nil || started.ProcessID == "" {
		t.Fatalf("expected a process_id, got %s", out)
	}

	deadline := time.After(5 * time.Second)
	for {
		params, _ = json.Marshal(map[string]any{"action": "log", "process_id": started.ProcessID})
		out, isError = procTool.Execute(context.Background(), params)
		if isError {
			t.Fatalf("log failed: %s", out)
		}
		if strings.Contains(out, "bg-done") && strings.Contains(out, "exited") {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("background process never finished: %s", out)
		case <-time.After(20 * time.Millisecond):
		}
	}

	params, _ = json.Marshal(map[string]any{"action": "remove", "process_id": started.ProcessID})
	if out, isError = procTool.Execute(context.Background(), params); isError {
		t.Fatalf("remove failed: %s", out)
	}
	params, _ = json.Marshal(map[string]any{"action": "status", "process_id": started.ProcessID})
	if _, isError = procTool.Execute(context.Background(), params); !isError {
		t.Fatal("expected status of a removed process to fail")
	}
}
