package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.ObserveScan("high_risk", 2*time.Second)
	c.ObserveScan("none", time.Second)
	c.ObserveScan("none", time.Second)
	c.ObserveTool("pdftotext", "ok", 100*time.Millisecond)
	c.ObserveTool("pdftotext", "timeout", 30*time.Second)
	c.ObserveTool("soffice", "error", time.Second)

	if got := testutil.ToFloat64(c.scansTotal.WithLabelValues("none")); got != 2 {
		t.Fatalf("expected 2 clean scans, got %v", got)
	}
	if got := testutil.ToFloat64(c.toolsTotal.WithLabelValues("pdftotext", "timeout")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}

	s := c.Summary()
	if s.UploadsTotal != 3 || s.Buckets["high_risk"] != 1 || s.Buckets["none"] != 2 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.ToolFailures != 1 || s.ToolTimeouts != 1 {
		t.Fatalf("unexpected tool counts %+v", s)
	}
}

func TestWriteTextfile(t *testing.T) {
	c := NewCollector()
	c.ObserveScan("low_risk", time.Second)
	path := filepath.Join(t.TempDir(), "uploadscan.prom")

	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `uploadscan_scans_total{bucket="low_risk"} 1`) {
		t.Fatalf("textfile missing scan counter:\n%s", data)
	}
}
