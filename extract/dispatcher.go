package extract

import (
	"context"
	"errors"

	"uploadscan/logger"
	"uploadscan/tools"
)

// Dispatcher never returns an error: any extraction failure yields "" so the
// upload is still scored on filename, size and metadata. With native enabled,
// a failed PDF text tool is retried in process under the same bounds, and
// the recovered text is scored.
type Dispatcher struct {
	runner tools.ToolRunner
	native tools.InProcessLimits
}

func NewDispatcher(runner tools.ToolRunner, native tools.InProcessLimits) *Dispatcher {
	return &Dispatcher{runner: runner, native: native}
}

func (d *Dispatcher) ExtractText(ctx context.Context, path, mimeType string) string {
	switch Classify(mimeType) {
	case KindPDF:
		return d.pdfText(ctx, path)
	case KindOffice:
		return d.officeText(ctx, path)
	default:
		return ""
	}
}

func (d *Dispatcher) pdfText(ctx context.Context, path string) string {
	text, err := d.runner.ExtractPDFText(ctx, path)
	if err == nil {
		return text
	}
	logFailure("pdf text extraction", path, err)
	if !d.native.Enabled || ctx.Err() != nil {
		return ""
	}
	text, err = tools.RunInProcess(ctx, "native_pdf_text", path, d.native, func(ctx context.Context) (string, error) {
		return nativePDFText(ctx, path)
	})
	if err != nil {
		logger.Debugf("native pdf text extraction failed for %s: %v", path, err)
		return ""
	}
	return text
}

func (d *Dispatcher) officeText(ctx context.Context, path string) string {
	conv, err := d.runner.ConvertToPDF(ctx, path)
	if err != nil {
		logFailure("office conversion", path, err)
		return ""
	}
	defer func() {
		if err := conv.Close(); err != nil {
			logger.Warnf("failed to remove conversion dir %s: %v", conv.Dir(), err)
		}
	}()
	return d.pdfText(ctx, conv.PDFPath)
}

func logFailure(stage, path string, err error) {
	fields := map[string]interface{}{"stage": stage, "path": path}
	var toolErr *tools.ToolExecutionError
	if errors.As(err, &toolErr) {
		fields["tool"] = toolErr.Tool
		fields["exit_code"] = toolErr.ExitCode
		fields["timed_out"] = toolErr.TimedOut
		if toolErr.Stderr != "" {
			fields["stderr"] = toolErr.Stderr
		}
	}
	logger.WithFields(fields).Warnf("%s failed: %v", stage, err)
}
