package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.pdf")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestRunInProcessReturnsValue(t *testing.T) {
	path := writeInput(t, "%PDF-1.4")
	got, err := RunInProcess(context.Background(), "native", path, InProcessLimits{Enabled: true, MaxBytes: 1024},
		func(context.Context) (string, error) { return "text", nil })
	if err != nil || got != "text" {
		t.Fatalf("unexpected result %q, %v", got, err)
	}
}

func TestRunInProcessDisabled(t *testing.T) {
	called := false
	_, err := RunInProcess(context.Background(), "native", "/unused", InProcessLimits{},
		func(context.Context) (string, error) { called = true; return "", nil })
	if err == nil || called {
		t.Fatalf("disabled reader must not run, err=%v called=%v", err, called)
	}
}

func TestRunInProcessSizeCap(t *testing.T) {
	path := writeInput(t, "%PDF-1.4 with a body longer than the cap")
	called := false
	_, err := RunInProcess(context.Background(), "native", path, InProcessLimits{Enabled: true, MaxBytes: 8},
		func(context.Context) (string, error) { called = true; return "", nil })
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size cap error, got %v", err)
	}
	if called {
		t.Fatal("oversized input must not be parsed")
	}
}

func TestRunInProcessTimeout(t *testing.T) {
	path := writeInput(t, "%PDF-1.4")
	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := RunInProcess(context.Background(), "native", path, InProcessLimits{Enabled: true, Timeout: 50 * time.Millisecond},
		func(context.Context) (string, error) {
			<-release
			return "late", nil
		})
	if !errors.Is(err, ErrToolTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("timeout not enforced, took %s", elapsed)
	}
}

func TestRunInProcessCancelled(t *testing.T) {
	path := writeInput(t, "%PDF-1.4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunInProcess(ctx, "native", path, InProcessLimits{Enabled: true},
		func(ctx context.Context) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if errors.Is(err, ErrToolTimeout) {
		t.Fatal("cancellation must not be reported as a timeout")
	}
}

func TestRunInProcessRecoversPanic(t *testing.T) {
	path := writeInput(t, "%PDF-1.4")
	_, err := RunInProcess(context.Background(), "native", path, InProcessLimits{Enabled: true},
		func(context.Context) (string, error) { panic("bad xref") })
	var toolErr *ToolExecutionError
	if !errors.As(err, &toolErr) || !strings.Contains(err.Error(), "bad xref") {
		t.Fatalf("expected recovered panic error, got %v", err)
	}
}
