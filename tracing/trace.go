//go:build trace

// Package tracing wraps runtime/trace so scan phases show up as tasks and
// regions in `go tool trace`. Without the trace build tag the helpers are
// no-ops; the flight recorder is always available.
package tracing

import (
	"context"
	"os"
	"runtime/trace"
)

// DefaultTraceFile is where Start writes when given an empty path.
const DefaultTraceFile = "uploadscan-trace.out"

var traceFile *os.File

// Start enables runtime tracing for the whole process.
func Start(path string) error {
	if path == "" {
		path = DefaultTraceFile
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := trace.Start(f); err != nil {
		f.Close()
		return err
	}
	traceFile = f
	return nil
}

func Stop() {
	trace.Stop()
	if traceFile != nil {
		traceFile.Close()
		traceFile = nil
	}
}

// StartTask begins a trace task; call the returned func to end it.
func StartTask(ctx context.Context, name string) (context.Context, func()) {
	ctx, task := trace.NewTask(ctx, name)
	return ctx, task.End
}

func StartRegion(ctx context.Context, name string) func() {
	return trace.StartRegion(ctx, name).End
}

func Log(ctx context.Context, category, message string) {
	trace.Log(ctx, category, message)
}
