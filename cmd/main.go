package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"

	"uploadscan/config"
	"uploadscan/diag"
	"uploadscan/extract"
	"uploadscan/logger"
	"uploadscan/metadata"
	"uploadscan/metrics"
	"uploadscan/output"
	"uploadscan/scanner"
	"uploadscan/systeminfo"
	"uploadscan/tools"
	"uploadscan/tracing"
	"uploadscan/utils"
)

func main() {
	if err := tracing.Start(""); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start trace: %v\n", err)
	} else {
		defer tracing.Stop()
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	if cfg.TraceFlight {
		if err := tracing.StartFlightRecorder(cfg.TraceFlightMaxBytes, cfg.TraceFlightMinAge); err != nil {
			logger.Warnf("Failed to start flight recorder: %v", err)
		} else {
			defer dumpFlightRecorder(cfg.TraceFlightFile)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go handleSignalEvent(cancel, cfg.TraceFlight, cfg.TraceFlightFile, sigChan)

	summary, err := run(ctx, cfg)
	if err != nil {
		logger.Fatalf("Scanning failed: %v", err)
	}
	logger.WithFields(map[string]interface{}{
		"uploads":       summary.UploadsTotal,
		"buckets":       summary.Buckets,
		"tool_failures": summary.ToolFailures,
		"tool_timeouts": summary.ToolTimeouts,
	}).Info("Scanning completed.")
}

// run discovers uploads under cfg.StartPaths, scans them and writes one
// record per upload. A cancelled ctx still produces a complete output file:
// uploads that were not scanned are recorded as failed.
func run(ctx context.Context, cfg *config.Config) (metrics.Summary, error) {
	collector := metrics.NewCollector()
	runner := tools.NewExecRunner(tools.ExecConfig{
		PDFToText: cfg.PDFToTextBinary,
		Converter: cfg.ConverterBinary,
		PDFInfo:   cfg.PDFInfoBinary,
		Timeout:   cfg.ToolTimeout,
		TempDir:   cfg.TempDir,
		Observer:  collector,
	})

	sysInfo := systeminfo.Gather(runner.Binaries())
	for _, t := range sysInfo.Missing() {
		logger.Warnf("%s binary %q not found on PATH; affected uploads will score without extracted text", t.Role, t.Binary)
	}

	uploads, err := scanner.Discover(ctx, cfg.StartPaths, scanner.DiscoverOptions{
		Matcher:  utils.NewPatternMatcher(cfg.IncludePatterns, cfg.ExcludePatterns),
		MimeType: cfg.DeclaredMimeType,
	})
	if err != nil {
		return metrics.Summary{}, err
	}
	logger.Infof("Total uploads to scan: %d", len(uploads))

	native := nativeLimits(cfg)
	sc := scanner.New(cfg.Scanner, runner,
		scanner.WithDispatcher(extract.NewDispatcher(runner, native)),
		scanner.WithMetadataReader(metadata.NewReader(runner, native)),
		scanner.WithCollector(collector),
	)

	writer, err := output.New(cfg, sysInfo)
	if err != nil {
		return metrics.Summary{}, fmt.Errorf("failed to initialize output: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.MaxScansPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxScansPerSecond), cfg.MaxScansPerSecond)
	}

	watchdog := newWatchdog(cfg)
	watchdog.Start(ctx)
	defer watchdog.Close()

	bar := newProgressBar(len(uploads), cfg.ShowProgress)
	progressCh := make(chan int, max(cfg.ConcurrencyLevel*4, 64))
	var progressWG sync.WaitGroup
	progressWG.Add(1)
	go func() {
		defer progressWG.Done()
		for delta := range progressCh {
			_ = bar.Add(delta)
		}
	}()

	sc.ScanAll(ctx, uploads, scanner.BatchOptions{
		Concurrency: cfg.ConcurrencyLevel,
		Limiter:     limiter,
		Track:       watchdog.Begin,
		OnResult: func(_ int, up scanner.Upload, res scanner.Result, elapsed time.Duration) {
			rec := scanner.BuildRecord(up, res, sc.Config(), scanner.RecordOptions{
				HashAlgorithms: cfg.HashAlgorithms,
				Duration:       elapsed,
			})
			if err := writer.WriteRecord(rec); err != nil {
				logger.Errorf("Failed to write record for %s: %v", up.Path, err)
			}
			logRecord(rec)
			progressCh <- 1
		},
	})
	close(progressCh)
	progressWG.Wait()
	_ = bar.Finish()

	summary := collector.Summary()
	if err := writer.Close(&summary); err != nil {
		logger.Errorf("Failed to close output: %v", err)
	}
	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warnf("Failed to write metrics file %s: %v", cfg.MetricsFile, err)
		}
	}
	if ctx.Err() != nil {
		logger.Warn("Scan interrupted; unscanned uploads were recorded as failed.")
	}
	return summary, nil
}

// nativeLimits bounds the in-process PDF readers like the tools they replace:
// the tool timeout and the oversized-file ceiling.
func nativeLimits(cfg *config.Config) tools.InProcessLimits {
	limits := tools.InProcessLimits{Enabled: cfg.NativeFallback, Timeout: cfg.ToolTimeout}
	if cfg.Scanner != nil && cfg.Scanner.MaxFileSizeMB > 0 {
		limits.MaxBytes = int64(cfg.Scanner.MaxFileSizeMB) << 20
	}
	return limits
}

// newWatchdog returns nil when stall detection is off; a nil Watchdog is a
// valid no-op.
func newWatchdog(cfg *config.Config) *diag.Watchdog {
	if cfg.StallThreshold <= 0 {
		return nil
	}
	opts := diag.Options{StallThreshold: cfg.StallThreshold, Dir: cfg.DiagDir}
	if cfg.TraceFlight {
		opts.DumpFlightRecorder = tracing.WriteFlightRecorder
	}
	return diag.NewWatchdog(opts)
}

func logRecord(rec *scanner.Record) {
	entry := logger.WithFields(map[string]interface{}{
		"file":     rec.FileName,
		"score":    rec.Result.RiskScore,
		"flags":    strings.Join(rec.Result.Flags, ","),
		"decision": rec.Decision.Status,
	})
	if rec.Decision.Approved() {
		entry.Debug("Upload scanned")
		return
	}
	entry.Info("Upload held for review")
}

func newProgressBar(total int, show bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Scanning uploads"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetVisibility(show && progressVisible()),
		progressbar.OptionFullWidth(),
	)
}

func progressVisible() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("UPLOADSCAN_DISABLE_PROGRESS")))
	return value != "1" && value != "true" && value != "yes" && value != "on"
}

func handleSignalEvent(cancelFunc context.CancelFunc, traceFlight bool, traceFlightFile string, sigChan <-chan os.Signal) {
	if _, ok := <-sigChan; !ok {
		return
	}
	logger.Info("Interrupt signal received. Shutting down...")
	if traceFlight {
		dumpFlightRecorder(traceFlightFile)
	}
	cancelFunc()
}

func dumpFlightRecorder(path string) {
	if err := tracing.WriteFlightRecorder(path); err != nil {
		logger.Warnf("Failed to write flight recorder: %v", err)
	}
	tracing.StopFlightRecorder()
}
