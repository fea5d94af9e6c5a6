package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestToolExecutionErrorMessages(t *testing.T) {
	cases := []struct {
		err  *ToolExecutionError
		want string
	}{
		{&ToolExecutionError{Tool: "pdftotext", TimedOut: true, Err: context.DeadlineExceeded}, "pdftotext: timed out"},
		{&ToolExecutionError{Tool: "pdfinfo", ExitCode: 1, Stderr: "bad file"}, "pdfinfo: exit 1: bad file"},
		{&ToolExecutionError{Tool: "soffice", ExitCode: -1, Err: errors.New("not found")}, "soffice: exit -1: not found"},
		{&ToolExecutionError{Tool: "soffice", ExitCode: 2}, "soffice: exit 2"},
	}
	for _, c := range cases {
		if got := c.err.Error(); got != c.want {
			t.Fatalf("expected %q, got %q", c.want, got)
		}
	}
}

func TestToolExecutionErrorIsTimeout(t *testing.T) {
	err := error(&ToolExecutionError{Tool: "pdftotext", TimedOut: true, Err: context.DeadlineExceeded})
	if !errors.Is(err, ErrToolTimeout) {
		t.Fatal("expected timeout match")
	}
	other := error(&ToolExecutionError{Tool: "pdftotext", ExitCode: 1})
	if errors.Is(other, ErrToolTimeout) {
		t.Fatal("non-timeout error matched ErrToolTimeout")
	}
}

func TestStderrExcerptTruncates(t *testing.T) {
	long := strings.Repeat("x", maxStderrExcerpt*2)
	if got := stderrExcerpt([]byte(long)); len(got) != maxStderrExcerpt {
		t.Fatalf("expected %d bytes, got %d", maxStderrExcerpt, len(got))
	}
	if got := stderrExcerpt([]byte("  warn\n")); got != "warn" {
		t.Fatalf("expected trimmed excerpt, got %q", got)
	}
}
