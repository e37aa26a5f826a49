package exec

import (
	"errors"
	"fmt"
)

var errEmptyCommand = errors.New("command is required")

// CommandError reports a failure preparing or starting a shell command:
// a missing command string, a bad cwd resolution, or a failed process
// start. It never represents the command's own exit status, which is
// carried in ExecResult.ExitCode instead.
type CommandError struct {
	Op    string
	Cause error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("exec %s: %v", e.Op, e.Cause)
}

func (e *CommandError) Unwrap() error { return e.Cause }
