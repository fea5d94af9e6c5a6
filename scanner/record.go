package scanner

import (
	"os"
	"time"

	"github.com/google/uuid"

	"uploadscan/config"
	"uploadscan/hasher"
	"uploadscan/logger"
	"uploadscan/moderation"
)

// Record is what gets persisted per upload: the scan result plus the
// moderation decision and enough file identity to audit it later.
type Record struct {
	ID           string              `json:"id"`
	Path         string              `json:"path"`
	FileName     string              `json:"file_name"`
	MimeType     string              `json:"mime_type"`
	Size         int64               `json:"size,omitempty"`
	ModTime      string              `json:"mod_time,omitempty"`
	ChangeTime   string              `json:"change_time,omitempty"`
	CreationTime string              `json:"creation_time,omitempty"`
	Hashes       map[string]string   `json:"hashes,omitempty"`
	Result       Result              `json:"result"`
	Decision     moderation.Decision `json:"decision"`
	ScannedAt    string              `json:"scanned_at"`
	DurationMs   int64               `json:"duration_ms"`
}

type RecordOptions struct {
	HashAlgorithms []string
	ScannedAt      time.Time
	Duration       time.Duration
}

// BuildRecord assembles a Record for an already scanned upload. File identity
// is best effort; a file that vanished after the scan still gets a record.
func BuildRecord(up Upload, res Result, cfg *config.ScannerConfig, opts RecordOptions) *Record {
	scannedAt := opts.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = time.Now()
	}
	rec := &Record{
		ID:         uuid.NewString(),
		Path:       up.Path,
		FileName:   up.FileName,
		MimeType:   up.MimeType,
		Result:     res,
		Decision:   moderation.Decide(res, cfg),
		ScannedAt:  scannedAt.UTC().Format(time.RFC3339),
		DurationMs: opts.Duration.Milliseconds(),
	}

	info, err := os.Stat(up.Path)
	if err != nil || !info.Mode().IsRegular() {
		return rec
	}
	rec.Size = info.Size()
	rec.ModTime = info.ModTime().UTC().Format(time.RFC3339)
	if ft, err := fileTimes(up.Path); err == nil {
		rec.ChangeTime = ft.ChangeTime
		rec.CreationTime = ft.CreationTime
	}
	if len(opts.HashAlgorithms) > 0 {
		hashes, err := hasher.ComputeHashes(up.Path, opts.HashAlgorithms)
		if err != nil {
			logger.Warnf("Failed to hash %s: %v", up.Path, err)
		}
		if len(hashes) > 0 {
			rec.Hashes = hashes
		}
	}
	return rec
}
