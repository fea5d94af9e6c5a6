//go:build !trace

package tracing

import (
	"context"
	"testing"
)

func TestTraceStubNoOps(t *testing.T) {
	if err := Start(""); err != nil {
		t.Fatalf("Start() returned error: %v", err)
	}
	Stop()

	ctx, endTask := StartTask(context.Background(), "scan_upload")
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	endTask()

	endRegion := StartRegion(ctx, "extract_text")
	endRegion()

	Log(ctx, "upload", "a.pdf")
}
