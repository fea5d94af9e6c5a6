package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// InProcessLimits configures the in-process readers used when an external
// tool fails. The zero value disables them.
type InProcessLimits struct {
	Enabled bool
	// MaxBytes rejects larger inputs; <= 0 means no cap.
	MaxBytes int64
	// Timeout bounds each call; <= 0 means DefaultTimeout.
	Timeout time.Duration
}

// RunInProcess runs fn on path under the same bounds as an external tool: a
// size cap, a deadline and ctx cancellation. When the deadline passes the
// caller gets a timed-out ToolExecutionError; fn keeps its ctx and is expected
// to stop at its next check.
func RunInProcess[T any](ctx context.Context, tool, path string, limits InProcessLimits, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !limits.Enabled {
		return zero, fmt.Errorf("%s: in-process reader disabled", tool)
	}
	if limits.MaxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return zero, &ToolExecutionError{Tool: tool, ExitCode: -1, Err: err}
		}
		if info.Size() > limits.MaxBytes {
			return zero, &ToolExecutionError{
				Tool:     tool,
				ExitCode: -1,
				Err:      fmt.Errorf("input too large: %d bytes exceeds %d", info.Size(), limits.MaxBytes),
			}
		}
	}

	timeout := limits.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if rec := recover(); rec != nil {
				out = outcome{err: fmt.Errorf("%s panic: %v", tool, rec)}
			}
			done <- out
		}()
		out.value, out.err = fn(ctx)
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return zero, &ToolExecutionError{Tool: tool, ExitCode: -1, Err: out.err}
		}
		return out.value, nil
	case <-ctx.Done():
		return zero, &ToolExecutionError{
			Tool:     tool,
			ExitCode: -1,
			TimedOut: errors.Is(ctx.Err(), context.DeadlineExceeded),
			Err:      ctx.Err(),
		}
	}
}
