package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"uploadscan/logger"
	"uploadscan/tools"
)

func init() {
	logger.Init("error")
}

type fakeRunner struct {
	t          *testing.T
	text       map[string]string
	textErr    error
	convertErr error
	textCalls  []string
	converted  []*tools.Conversion
}

func (f *fakeRunner) ExtractPDFText(_ context.Context, path string) (string, error) {
	f.textCalls = append(f.textCalls, path)
	if f.textErr != nil {
		return "", f.textErr
	}
	return f.text[filepath.Base(path)], nil
}

func (f *fakeRunner) ConvertToPDF(_ context.Context, path string) (*tools.Conversion, error) {
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	conv, err := tools.NewConversion(f.t.TempDir())
	if err != nil {
		return nil, err
	}
	conv.PDFPath = filepath.Join(conv.Dir(), "converted.pdf")
	if err := os.WriteFile(conv.PDFPath, []byte("%PDF-1.4"), 0o644); err != nil {
		return nil, err
	}
	f.converted = append(f.converted, conv)
	return conv, nil
}

func (f *fakeRunner) PDFInfo(context.Context, string) (string, error) {
	return "", errors.New("not used")
}

func TestClassify(t *testing.T) {
	cases := []struct {
		mime string
		want Kind
	}{
		{"application/pdf", KindPDF},
		{"APPLICATION/PDF", KindPDF},
		{"application/pdf; charset=binary", KindPDF},
		{"application/x-pdf", KindPDF},
		{"application/msword", KindOffice},
		{"application/rtf", KindOffice},
		{"text/rtf", KindOffice},
		{"application/vnd.ms-powerpoint", KindOffice},
		{"application/vnd.ms-excel", KindOffice},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", KindOffice},
		{"application/vnd.oasis.opendocument.text", KindOffice},
		{"image/png", KindOther},
		{"text/plain", KindOther},
		{"", KindOther},
		{"application/octet-stream", KindOther},
	}
	for _, c := range cases {
		if got := Classify(c.mime); got != c.want {
			t.Fatalf("Classify(%q) = %v, want %v", c.mime, got, c.want)
		}
	}
}

func TestExtractTextPDF(t *testing.T) {
	runner := &fakeRunner{t: t, text: map[string]string{"a.pdf": "Chapter 1: Cells"}}
	d := NewDispatcher(runner, tools.InProcessLimits{})

	got := d.ExtractText(context.Background(), "/uploads/a.pdf", "application/pdf")
	if got != "Chapter 1: Cells" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractTextOfficeConvertsAndCleansUp(t *testing.T) {
	runner := &fakeRunner{t: t, text: map[string]string{"converted.pdf": "Answer Key"}}
	d := NewDispatcher(runner, tools.InProcessLimits{})

	got := d.ExtractText(context.Background(), "/uploads/a.docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	if got != "Answer Key" {
		t.Fatalf("unexpected text %q", got)
	}
	if len(runner.converted) != 1 {
		t.Fatalf("expected one conversion, got %d", len(runner.converted))
	}
	if len(runner.textCalls) != 1 || runner.textCalls[0] != runner.converted[0].PDFPath {
		t.Fatalf("text extractor not run on converted file: %v", runner.textCalls)
	}
	if _, err := os.Stat(runner.converted[0].Dir()); !os.IsNotExist(err) {
		t.Fatalf("conversion dir not removed, stat err=%v", err)
	}
}

func TestExtractTextOfficeConversionFailure(t *testing.T) {
	runner := &fakeRunner{t: t, convertErr: &tools.ToolExecutionError{Tool: "soffice", ExitCode: 1}}
	d := NewDispatcher(runner, tools.InProcessLimits{Enabled: true})

	if got := d.ExtractText(context.Background(), "/uploads/a.doc", "application/msword"); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	if len(runner.textCalls) != 0 {
		t.Fatalf("text extractor should not run after failed conversion")
	}
}

func TestExtractTextOtherInvokesNothing(t *testing.T) {
	runner := &fakeRunner{t: t}
	d := NewDispatcher(runner, tools.InProcessLimits{Enabled: true})

	if got := d.ExtractText(context.Background(), "/uploads/a.png", "image/png"); got != "" {
		t.Fatalf("expected empty text, got %q", got)
	}
	if len(runner.textCalls) != 0 || len(runner.converted) != 0 {
		t.Fatal("no tool should be invoked for unsupported types")
	}
}

func TestExtractTextToolFailureReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("definitely not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	runner := &fakeRunner{t: t, textErr: &tools.ToolExecutionError{Tool: "pdftotext", TimedOut: true}}

	for _, native := range []tools.InProcessLimits{{}, {Enabled: true}} {
		d := NewDispatcher(runner, native)
		if got := d.ExtractText(context.Background(), path, "application/pdf"); got != "" {
			t.Fatalf("native=%+v: expected empty text, got %q", native, got)
		}
	}
}

const publisherFixture = "testdata/publisher.pdf"

func TestExtractTextToolFailureIgnoresReadablePDFByDefault(t *testing.T) {
	runner := &fakeRunner{t: t, textErr: &tools.ToolExecutionError{Tool: "pdftotext", ExitCode: 127}}
	d := NewDispatcher(runner, tools.InProcessLimits{})

	if got := d.ExtractText(context.Background(), publisherFixture, "application/pdf"); got != "" {
		t.Fatalf("expected empty text without native reader, got %q", got)
	}
}

func TestExtractTextNativeFallbackReadsPDF(t *testing.T) {
	runner := &fakeRunner{t: t, textErr: &tools.ToolExecutionError{Tool: "pdftotext", ExitCode: 127}}
	d := NewDispatcher(runner, tools.InProcessLimits{Enabled: true, MaxBytes: 1 << 20, Timeout: 5 * time.Second})

	got := d.ExtractText(context.Background(), publisherFixture, "application/pdf")
	if !strings.Contains(got, "Pearson Education") {
		t.Fatalf("expected fixture text, got %q", got)
	}
}

func TestExtractTextNativeFallbackSizeCap(t *testing.T) {
	runner := &fakeRunner{t: t, textErr: &tools.ToolExecutionError{Tool: "pdftotext", ExitCode: 127}}
	d := NewDispatcher(runner, tools.InProcessLimits{Enabled: true, MaxBytes: 64})

	if got := d.ExtractText(context.Background(), publisherFixture, "application/pdf"); got != "" {
		t.Fatalf("oversized PDF must not be parsed in process, got %q", got)
	}
}

func TestNativePDFTextMissingFile(t *testing.T) {
	if _, err := nativePDFText(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNativePDFTextStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := nativePDFText(ctx, publisherFixture); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
