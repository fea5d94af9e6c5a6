// Package scanner orchestrates one scan per upload: stat, text extraction,
// PDF metadata, heuristics and final bucketing. Scan never returns an error;
// failures are folded into the Result as scan_failed.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"uploadscan/config"
	"uploadscan/extract"
	"uploadscan/heuristics"
	"uploadscan/logger"
	"uploadscan/metadata"
	"uploadscan/tools"
	"uploadscan/tracing"
)

// Upload is the input triple handed over by the upload service.
type Upload struct {
	Path     string `json:"path"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

type TextExtractor interface {
	ExtractText(ctx context.Context, path, mimeType string) string
}

type MetadataReader interface {
	Read(ctx context.Context, path string) (map[string]string, error)
}

// Collector receives one observation per completed scan.
type Collector interface {
	ObserveScan(bucket string, elapsed time.Duration)
}

type Scanner struct {
	cfg        *config.ScannerConfig
	heuristics []heuristics.Heuristic
	extractor  TextExtractor
	metadata   MetadataReader
	collector  Collector
}

type Option func(*Scanner)

func WithHeuristics(hs ...heuristics.Heuristic) Option {
	return func(s *Scanner) { s.heuristics = hs }
}

func WithDispatcher(e TextExtractor) Option {
	return func(s *Scanner) { s.extractor = e }
}

func WithMetadataReader(m MetadataReader) Option {
	return func(s *Scanner) { s.metadata = m }
}

func WithCollector(c Collector) Option {
	return func(s *Scanner) { s.collector = c }
}

// New builds a Scanner around runner. cfg is shared read-only by every scan;
// nil means defaults. The default extractor and metadata reader never fall
// back to in-process parsers, so a failed tool contributes nothing to the
// score.
func New(cfg *config.ScannerConfig, runner tools.ToolRunner, opts ...Option) *Scanner {
	if cfg == nil {
		cfg = config.DefaultScannerConfig()
	}
	s := &Scanner{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.heuristics == nil {
		s.heuristics = heuristics.Default(cfg)
	}
	if s.extractor == nil {
		s.extractor = extract.NewDispatcher(runner, tools.InProcessLimits{})
	}
	if s.metadata == nil {
		s.metadata = metadata.NewReader(runner, tools.InProcessLimits{})
	}
	return s
}

func (s *Scanner) Config() *config.ScannerConfig {
	return s.cfg
}

// Scan makes exactly one attempt at the upload.
func (s *Scanner) Scan(ctx context.Context, up Upload) (res Result) {
	ctx, endTask := tracing.StartTask(ctx, "scan_upload")
	defer endTask()
	tracing.Log(ctx, "upload", up.Path)

	start := time.Now()
	acc := newAccumulator()
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("unexpected panic: %v", rec)
			logger.Errorf("Scan of %s panicked: %v", up.Path, rec)
			acc.fail(err)
			res = acc.result()
		}
		if s.collector != nil {
			s.collector.ObserveScan(res.Bucket(), time.Since(start))
		}
	}()

	if err := s.evaluate(ctx, up, acc); err != nil {
		logger.WithFields(map[string]interface{}{
			"path":      up.Path,
			"mime_type": up.MimeType,
		}).Warnf("Scan failed: %v", err)
		acc.fail(err)
		return acc.result()
	}
	acc.bucket()
	return acc.result()
}

func (s *Scanner) evaluate(ctx context.Context, up Upload, acc *accumulator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(up.Path)
	if err != nil {
		return fmt.Errorf("stat upload: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("upload %s is not a regular file", up.Path)
	}

	name := up.FileName
	if name == "" {
		name = filepath.Base(up.Path)
	}
	in := &heuristics.Input{
		Path:      up.Path,
		FileName:  name,
		SizeBytes: info.Size(),
		Config:    s.cfg,
	}

	// Name and size hits are kept even if the scan fails later.
	endRegion := tracing.StartRegion(ctx, "file_heuristics")
	s.run(in, heuristics.StageFile, acc)
	endRegion()

	endRegion = tracing.StartRegion(ctx, "extract_text")
	in.Text = s.extractor.ExtractText(ctx, up.Path, up.MimeType)
	endRegion()

	if extract.Classify(up.MimeType) == extract.KindPDF {
		endRegion = tracing.StartRegion(ctx, "read_metadata")
		meta, err := s.metadata.Read(ctx, up.Path)
		endRegion()
		if err != nil {
			logger.Debugf("Metadata unavailable for %s: %v", up.Path, err)
		} else {
			in.Metadata = meta
		}
	}

	// Text or metadata cut short by cancellation would under-report risk.
	if err := ctx.Err(); err != nil {
		return err
	}

	endRegion = tracing.StartRegion(ctx, "content_heuristics")
	s.run(in, heuristics.StageContent, acc)
	endRegion()
	return nil
}

func (s *Scanner) run(in *heuristics.Input, stage heuristics.Stage, acc *accumulator) {
	for _, h := range s.heuristics {
		if heuristics.StageOf(h) == stage {
			acc.add(h.Evaluate(in))
		}
	}
}
