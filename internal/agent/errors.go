package agent

import "fmt"

// InputError is raised before any provider call for malformed user input:
// empty content, an attachment type normalizeInput can't sniff into a
// block. The conversation is never mutated when this is returned.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return "input error: " + e.Message }

// LoopError is raised when the tool-use loop is aborted by its own safety
// mechanisms rather than by the provider or a tool: the iteration cap.
type LoopError struct {
	Kind    string
	Message string
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("agent loop error (%s): %s", e.Kind, e.Message)
}

// ToolExecutionError formats a recovered tool handler failure (panic or
// returned error) into the text carried by an is_error=true tool_result
// block. The loop never aborts because of this; it is captured and
// returned as ordinary tool output.
func ToolExecutionError(toolName string, cause error) string {
	return fmt.Sprintf("tool %q failed: %v", toolName, cause)
}
