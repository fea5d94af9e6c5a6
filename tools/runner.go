// Package tools wraps the external binaries the scanner shells out to: a PDF
// text extractor, an office-to-PDF converter and a PDF metadata reader.
package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second

	// waitDelay bounds how long Wait keeps draining pipes after the process
	// group has been killed.
	waitDelay = 2 * time.Second
)

// ToolRunner is the single seam between the scanner and external processes.
type ToolRunner interface {
	// ExtractPDFText returns the text layer of the PDF at path.
	ExtractPDFText(ctx context.Context, path string) (string, error)
	// ConvertToPDF converts an office document into a PDF inside a fresh
	// working directory. The caller must Close the returned Conversion.
	ConvertToPDF(ctx context.Context, path string) (*Conversion, error)
	// PDFInfo returns the raw "key: value" metadata listing for a PDF.
	PDFInfo(ctx context.Context, path string) (string, error)
}

// Observer is notified after every tool invocation.
type Observer interface {
	ObserveTool(tool, outcome string, elapsed time.Duration)
}

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

type ExecConfig struct {
	PDFToText string
	Converter string
	PDFInfo   string
	Timeout   time.Duration
	TempDir   string
	Observer  Observer
}

// ExecRunner runs the tools as child processes, each bounded by a timeout.
type ExecRunner struct {
	pdftotext string
	converter string
	pdfinfo   string
	timeout   time.Duration
	tempDir   string
	observer  Observer
}

func NewExecRunner(cfg ExecConfig) *ExecRunner {
	r := &ExecRunner{
		pdftotext: cfg.PDFToText,
		converter: cfg.Converter,
		pdfinfo:   cfg.PDFInfo,
		timeout:   cfg.Timeout,
		tempDir:   cfg.TempDir,
		observer:  cfg.Observer,
	}
	if r.pdftotext == "" {
		r.pdftotext = "pdftotext"
	}
	if r.converter == "" {
		r.converter = "soffice"
	}
	if r.pdfinfo == "" {
		r.pdfinfo = "pdfinfo"
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.tempDir == "" {
		r.tempDir = os.TempDir()
	}
	return r
}

// Binaries lists the configured executables by logical role.
func (r *ExecRunner) Binaries() map[string]string {
	return map[string]string{
		"pdf_text":      r.pdftotext,
		"pdf_converter": r.converter,
		"pdf_metadata":  r.pdfinfo,
	}
}

func (r *ExecRunner) ExtractPDFText(ctx context.Context, path string) (string, error) {
	out, err := r.run(ctx, r.pdftotext, path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *ExecRunner) PDFInfo(ctx context.Context, path string) (string, error) {
	out, err := r.run(ctx, r.pdfinfo, path)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (r *ExecRunner) ConvertToPDF(ctx context.Context, path string) (*Conversion, error) {
	conv, err := NewConversion(r.tempDir)
	if err != nil {
		return nil, err
	}
	// A private profile per run keeps concurrent converter instances from
	// locking each other out.
	profile := "file://" + filepath.ToSlash(filepath.Join(conv.Dir(), "profile"))
	_, err = r.run(ctx, r.converter,
		"--headless",
		"-env:UserInstallation="+profile,
		"--convert-to", "pdf",
		"--outdir", conv.Dir(),
		path,
	)
	if err != nil {
		conv.Close()
		return nil, err
	}
	pdfPath, err := conv.locateOutput(path)
	if err != nil {
		conv.Close()
		return nil, err
	}
	conv.PDFPath = pdfPath
	return conv, nil
}

func (r *ExecRunner) run(ctx context.Context, tool string, args ...string) ([]byte, error) {
	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, tool, args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		r.observe(tool, OutcomeOK, time.Since(start))
		return stdout.Bytes(), nil
	}

	toolErr := &ToolExecutionError{
		Tool:     filepath.Base(tool),
		ExitCode: -1,
		Stderr:   stderrExcerpt(stderr.Bytes()),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	outcome := OutcomeError
	if ctxErr := execCtx.Err(); ctxErr != nil {
		toolErr.Err = ctxErr
		toolErr.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			toolErr.TimedOut = true
			outcome = OutcomeTimeout
		}
	}
	r.observe(tool, outcome, time.Since(start))
	return nil, toolErr
}

func (r *ExecRunner) observe(tool, outcome string, elapsed time.Duration) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveTool(filepath.Base(tool), outcome, elapsed)
}
