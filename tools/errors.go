package tools

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrToolTimeout matches any ToolExecutionError caused by the per-call timeout.
var ErrToolTimeout = errors.New("tool execution timed out")

const maxStderrExcerpt = 512

// ToolExecutionError reports a failed external tool invocation. ExitCode is -1
// when the process could not be started or was killed.
type ToolExecutionError struct {
	Tool     string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *ToolExecutionError) Error() string {
	switch {
	case e.TimedOut:
		return fmt.Sprintf("%s: timed out", e.Tool)
	case e.Stderr != "":
		return fmt.Sprintf("%s: exit %d: %s", e.Tool, e.ExitCode, e.Stderr)
	case e.Err != nil:
		return fmt.Sprintf("%s: exit %d: %v", e.Tool, e.ExitCode, e.Err)
	default:
		return fmt.Sprintf("%s: exit %d", e.Tool, e.ExitCode)
	}
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

func (e *ToolExecutionError) Is(target error) bool {
	return target == ErrToolTimeout && e.TimedOut
}

func stderrExcerpt(stderr []byte) string {
	if len(stderr) > maxStderrExcerpt {
		stderr = stderr[:maxStderrExcerpt]
	}
	return string(bytes.TrimSpace(stderr))
}
