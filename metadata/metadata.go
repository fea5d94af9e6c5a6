// Package metadata reads PDF document information for the metadata heuristic.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"uploadscan/logger"
	"uploadscan/tools"
)

// Reader prefers the external metadata tool and, when enabled, falls back to
// parsing the document info dictionary in process.
type Reader struct {
	runner tools.ToolRunner
	native tools.InProcessLimits
}

func NewReader(runner tools.ToolRunner, native tools.InProcessLimits) *Reader {
	return &Reader{runner: runner, native: native}
}

// Read returns lower-cased metadata keys for the PDF at path. An error is
// returned only when no source produced anything.
func (r *Reader) Read(ctx context.Context, path string) (map[string]string, error) {
	out, err := r.runner.PDFInfo(ctx, path)
	if err == nil {
		return tools.ParseKeyValues(out), nil
	}
	if !r.native.Enabled || ctx.Err() != nil {
		return nil, err
	}
	logger.Debugf("pdf metadata tool failed for %s, using native reader: %v", path, err)
	meta, nativeErr := tools.RunInProcess(ctx, "native_pdf_info", path, r.native, func(context.Context) (map[string]string, error) {
		return readInfoDict(path)
	})
	if nativeErr != nil {
		return nil, errors.Join(err, nativeErr)
	}
	return meta, nil
}

// readInfoDict has no cancellation point inside pdfcpu; RunInProcess bounds
// it by size and deadline.
func readInfoDict(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := api.PDFInfo(f, path, nil, false, nil)
	if err != nil {
		return nil, fmt.Errorf("read pdf info: %w", err)
	}

	meta := make(map[string]string)
	if info.Title != "" {
		meta["title"] = info.Title
	}
	if info.Author != "" {
		meta["author"] = info.Author
	}
	if info.Creator != "" {
		meta["creator"] = info.Creator
	}
	if info.Producer != "" {
		meta["producer"] = info.Producer
	}
	return meta, nil
}
