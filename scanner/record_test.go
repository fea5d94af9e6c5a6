package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"uploadscan/config"
	"uploadscan/moderation"
)

func TestBuildRecord(t *testing.T) {
	path := writeUpload(t, "essay.pdf", "hello world")
	up := pdfUpload(path)
	res := Result{RiskScore: 0, Flags: []string{}}
	cfg := config.DefaultScannerConfig()
	cfg.EnableAutoApproval = true

	scannedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := BuildRecord(up, res, cfg, RecordOptions{
		HashAlgorithms: []string{"sha256"},
		ScannedAt:      scannedAt,
		Duration:       1500 * time.Millisecond,
	})

	if rec.ID == "" || len(rec.ID) != 36 {
		t.Fatalf("expected uuid id, got %q", rec.ID)
	}
	if rec.Size != int64(len("hello world")) {
		t.Fatalf("unexpected size %d", rec.Size)
	}
	if rec.Hashes["sha256"] != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("unexpected hash %v", rec.Hashes)
	}
	if rec.ModTime == "" {
		t.Fatal("expected mod time")
	}
	if rec.ScannedAt != "2026-03-01T12:00:00Z" || rec.DurationMs != 1500 {
		t.Fatalf("unexpected timing %s %d", rec.ScannedAt, rec.DurationMs)
	}
	if rec.Decision.Status != moderation.StatusAutoApproved {
		t.Fatalf("expected auto approval, got %+v", rec.Decision)
	}
}

func TestBuildRecordForFailedScan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.pdf")
	res := Result{RiskScore: 50, Flags: []string{FlagScanFailed}, Details: Details{Error: "stat upload: missing"}}
	cfg := config.DefaultScannerConfig()
	cfg.EnableAutoApproval = true

	rec := BuildRecord(pdfUpload(path), res, cfg, RecordOptions{HashAlgorithms: []string{"sha256"}})
	if rec.Size != 0 || rec.Hashes != nil {
		t.Fatalf("missing file should carry no identity, got %+v", rec)
	}
	if rec.Decision.Status != moderation.StatusPendingReview {
		t.Fatalf("failed scan must go to review, got %+v", rec.Decision)
	}
	if !strings.HasSuffix(rec.ScannedAt, "Z") {
		t.Fatalf("expected UTC timestamp, got %s", rec.ScannedAt)
	}
}

func TestFileTimes(t *testing.T) {
	path := writeUpload(t, "a.txt", "x")
	if _, err := fileTimes(path); err != nil {
		t.Fatalf("fileTimes: %v", err)
	}
	if _, err := fileTimes(path + ".missing"); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
