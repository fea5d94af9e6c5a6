// Package output persists scan records as NDJSON, one envelope per line, and
// optionally mirrors them to an OTLP log endpoint.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"uploadscan/config"
	"uploadscan/logger"
	"uploadscan/metrics"
	"uploadscan/scanner"
	"uploadscan/systeminfo"
)

const SchemaVersion = "1.0.0"

const (
	RecordSystemInfo = "system_info"
	RecordScan       = "scan"
	RecordMetrics    = "metrics"
)

type envelope struct {
	RecordType    string `json:"record_type"`
	SchemaVersion string `json:"schema_version"`
	Payload       any    `json:"payload"`
}

type Writer struct {
	mu      sync.Mutex
	file    *os.File
	buf     *bufio.Writer
	cfg     *config.Config
	sysInfo *systeminfo.SystemInfo
	otel    *otelLogger
	base    string
	ext     string
	index   int
	written int
	closed  bool
}

// New opens the first output file and writes the system_info header. Every
// rotated file starts with the same header so each stands alone.
func New(cfg *config.Config, sysInfo *systeminfo.SystemInfo) (*Writer, error) {
	if cfg == nil || cfg.OutputFileName == "" {
		return nil, fmt.Errorf("output file name is required")
	}
	if sysInfo == nil {
		sysInfo = &systeminfo.SystemInfo{}
	}
	ext := filepath.Ext(cfg.OutputFileName)
	w := &Writer{
		cfg:     cfg,
		sysInfo: sysInfo,
		base:    strings.TrimSuffix(cfg.OutputFileName, ext),
		ext:     ext,
	}
	otel, err := newOtelLogger(cfg)
	if err != nil {
		logger.Warnf("OTEL export disabled: %v", err)
	} else {
		w.otel = otel
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	w.otel.Emit(RecordSystemInfo, sysInfo)
	return w, nil
}

// FileName returns the file currently being written.
func (w *Writer) FileName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileNameLocked()
}

func (w *Writer) fileNameLocked() string {
	if w.index == 0 {
		return w.base + w.ext
	}
	return fmt.Sprintf("%s.%d%s", w.base, w.index, w.ext)
}

func (w *Writer) openFile() error {
	f, err := os.OpenFile(w.fileNameLocked(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	w.file = f
	w.buf = bufio.NewWriterSize(f, 1024*1024)
	if err := w.writeLineLocked(RecordSystemInfo, w.sysInfo); err != nil {
		return err
	}
	return w.buf.Flush()
}

func (w *Writer) writeLineLocked(recordType string, payload any) error {
	line, err := jsonMarshal(envelope{RecordType: recordType, SchemaVersion: SchemaVersion, Payload: payload})
	if err != nil {
		return err
	}
	if _, err := w.buf.Write(line); err != nil {
		return err
	}
	return w.buf.WriteByte('\n')
}

// WriteRecord appends one scan record. Safe for concurrent use.
func (w *Writer) WriteRecord(rec *scanner.Record) error {
	if rec == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("output writer closed")
	}

	if err := w.writeLineLocked(RecordScan, rec); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	w.written++
	w.otel.Emit(RecordScan, rec)

	if w.cfg.MaxOutputFileSize > 0 {
		if info, err := w.file.Stat(); err == nil && info.Size() >= w.cfg.MaxOutputFileSize {
			return w.rotate()
		}
	}
	return nil
}

// Written reports how many scan records have been written across all files.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

func (w *Writer) rotate() error {
	if err := w.closeFile(); err != nil {
		logger.Warnf("Failed to close %s: %v", w.fileNameLocked(), err)
	}
	w.index++
	logger.Debugf("Rotating output to %s", w.fileNameLocked())
	return w.openFile()
}

// Close writes the run summary as the final record and shuts down export.
func (w *Writer) Close(summary *metrics.Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	if summary != nil {
		if err := w.writeLineLocked(RecordMetrics, summary); err != nil {
			errs = append(errs, err)
		}
		w.otel.Emit(RecordMetrics, summary)
	}
	if err := w.closeFile(); err != nil {
		errs = append(errs, err)
	}
	w.otel.Shutdown()
	return errors.Join(errs...)
}

func (w *Writer) closeFile() error {
	flushErr := w.buf.Flush()
	_ = w.file.Sync()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
