package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Version is stamped at build time with -ldflags "-X uploadscan/config.Version=...".
var Version = "dev"

type Config struct {
	StartPaths          []string          `json:"start_paths"`
	IncludePatterns     []string          `json:"include_patterns"`
	ExcludePatterns     []string          `json:"exclude_patterns"`
	DeclaredMimeType    string            `json:"mime_type"`
	ConcurrencyLevel    int               `json:"concurrency_level"`
	MaxScansPerSecond   int               `json:"max_scans_per_second"`
	ToolTimeout         time.Duration     `json:"tool_timeout"`
	PDFToTextBinary     string            `json:"pdftotext_binary"`
	ConverterBinary     string            `json:"converter_binary"`
	PDFInfoBinary       string            `json:"pdfinfo_binary"`
	TempDir             string            `json:"temp_dir"`
	NativeFallback      bool              `json:"native_fallback"`
	HashAlgorithms      []string          `json:"hash_algorithms"`
	OutputFileName      string            `json:"output_file_name"`
	MaxOutputFileSize   int64             `json:"max_output_file_size"`
	LogLevel            string            `json:"log_level"`
	MetricsFile         string            `json:"metrics_file"`
	ShowProgress        bool              `json:"show_progress"`
	ConfigFile          string            `json:"config_file"`
	OtelEndpoint        string            `json:"otel_endpoint"`
	OtelFromEnv         bool              `json:"otel_from_env"`
	OtelHeaders         map[string]string `json:"otel_headers"`
	OtelServiceName     string            `json:"otel_service_name"`
	OtelTimeout         time.Duration     `json:"otel_timeout"`
	OtelExportPaths     bool              `json:"otel_export_paths"`
	OtelExportDetails   bool              `json:"otel_export_details"`
	TraceFlight         bool              `json:"trace_flight"`
	TraceFlightFile     string            `json:"trace_flight_file"`
	TraceFlightMaxBytes uint64            `json:"trace_flight_max_bytes"`
	TraceFlightMinAge   time.Duration     `json:"trace_flight_min_age"`
	StallThreshold      time.Duration     `json:"stall_threshold"`
	DiagDir             string            `json:"diag_dir"`
	Scanner             *ScannerConfig    `json:"scanner"`
}

func defaultConfig() *Config {
	now := time.Now().UTC()
	timestamp := now.Format("20060102-150405")
	return &Config{
		StartPaths:        []string{"."},
		IncludePatterns:   []string{},
		ExcludePatterns:   []string{},
		ConcurrencyLevel:  runtime.NumCPU(),
		MaxScansPerSecond: 0,
		ToolTimeout:       30 * time.Second,
		PDFToTextBinary:   "pdftotext",
		ConverterBinary:   "soffice",
		PDFInfoBinary:     "pdfinfo",
		TempDir:           os.TempDir(),
		HashAlgorithms:    []string{"sha256"},
		OutputFileName:    fmt.Sprintf("uploadscan-%s-%d.ndjson", timestamp, now.Unix()),
		MaxOutputFileSize: 104857600,
		LogLevel:          "info",
		ShowProgress:      true,
		OtelHeaders:       map[string]string{},
		OtelServiceName:   "uploadscan",
		OtelTimeout:       5 * time.Second,
		TraceFlightFile:   "trace-flight.out",
		DiagDir:           ".",
		Scanner:           LoadScannerConfig(os.Getenv),
	}
}

func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	startPath := flag.String("path", strings.Join(cfg.StartPaths, ","), "Comma-separated list of uploaded files or directories to scan (default: .).")
	includes := flag.String("include", "", "Comma-separated list of include patterns (default: none).")
	excludes := flag.String("exclude", "", "Comma-separated list of exclude patterns (default: none).")
	mimeType := flag.String("mime", "", "Declared MIME type for every scanned file (default: sniffed from content).")
	concurrency := flag.Int("concurrency", cfg.ConcurrencyLevel, fmt.Sprintf("Maximum concurrent scans (default: %d).", cfg.ConcurrencyLevel))
	maxScans := flag.Int("max-scans-per-second", cfg.MaxScansPerSecond, "Maximum scans started per second, 0 means unlimited (default: 0).")
	toolTimeout := flag.Duration("tool-timeout", cfg.ToolTimeout, "Timeout for each external tool invocation (default: 30s).")
	pdftotext := flag.String("pdftotext-bin", cfg.PDFToTextBinary, fmt.Sprintf("PDF to text extractor binary (default: %s).", cfg.PDFToTextBinary))
	converter := flag.String("converter-bin", cfg.ConverterBinary, fmt.Sprintf("Office to PDF converter binary (default: %s).", cfg.ConverterBinary))
	pdfinfo := flag.String("pdfinfo-bin", cfg.PDFInfoBinary, fmt.Sprintf("PDF metadata reader binary (default: %s).", cfg.PDFInfoBinary))
	tempDir := flag.String("temp-dir", cfg.TempDir, "Parent directory for conversion working directories (default: system temp).")
	nativeFallback := flag.Bool("native-fallback", cfg.NativeFallback, fmt.Sprintf("Parse PDFs in process when pdftotext or pdfinfo fail; recovered text and metadata are scored (default: %t).", cfg.NativeFallback))
	hashes := flag.String("hashes", strings.Join(cfg.HashAlgorithms, ","), "Comma-separated list of hash algorithms: md5, sha1, sha256, blake3, xxh64 (default: sha256).")
	output := flag.String("output", cfg.OutputFileName, "Output file name (default: uploadscan-<timestamp>-<unix>.ndjson).")
	maxOutputFileSize := flag.Int64("max-output-file-size", cfg.MaxOutputFileSize, fmt.Sprintf("Maximum output file size before rotation in bytes (default: %d).", cfg.MaxOutputFileSize))
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level: debug, info, warn, error, fatal, or panic (default: info).")
	metricsFile := flag.String("metrics-file", "", "Write Prometheus metrics in text format to this file on exit (default: none).")
	progress := flag.Bool("progress", cfg.ShowProgress, "Show a progress bar (default: true).")
	configFile := flag.String("config", "", "Path to JSON configuration file (default: none).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP/HTTP logs endpoint (default: none).")
	otelFromEnv := flag.Bool("otel-from-env", cfg.OtelFromEnv, "Allow OTEL endpoint fallback from OTEL environment variables (default: false).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated OTEL headers (key=value) for export (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, "OTEL service name for export (default: uploadscan).")
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "OTEL export timeout (default: 5s).")
	otelExportPaths := flag.Bool("otel-export-paths", cfg.OtelExportPaths, "Include raw file paths in OTEL payloads (default: false).")
	otelExportDetails := flag.Bool("otel-export-details", cfg.OtelExportDetails, "Include matched phrases and metadata evidence in OTEL payloads (default: false).")
	traceFlight := flag.Bool("trace-flight", cfg.TraceFlight, "Enable flight recorder tracing (default: false).")
	traceFlightFile := flag.String("trace-flight-file", cfg.TraceFlightFile, fmt.Sprintf("Flight recorder output file (default: %s).", cfg.TraceFlightFile))
	traceFlightMaxBytes := flag.Uint64("trace-flight-max-bytes", cfg.TraceFlightMaxBytes, "Max bytes for flight recorder buffer (default: 0 for runtime default).")
	traceFlightMinAge := flag.Duration("trace-flight-min-age", cfg.TraceFlightMinAge, "Minimum age of trace events to retain (default: 0).")
	stallThreshold := flag.Duration("stall-threshold", cfg.StallThreshold, "Dump diagnostics when no upload finishes for this long, 0 disables (default: 0).")
	diagDir := flag.String("diag-dir", cfg.DiagDir, "Directory for stall diagnostics (default: .).")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = displayHelp
	flag.Parse()

	if *showVersion {
		fmt.Printf("uploadscan version %s\n", Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(cfg.ConfigFile); err != nil {
			return nil, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "path":
			cfg.StartPaths = parseCommaSeparated(*startPath)
		case "include":
			cfg.IncludePatterns = parseCommaSeparated(*includes)
		case "exclude":
			cfg.ExcludePatterns = parseCommaSeparated(*excludes)
		case "mime":
			cfg.DeclaredMimeType = *mimeType
		case "concurrency":
			cfg.ConcurrencyLevel = *concurrency
		case "max-scans-per-second":
			cfg.MaxScansPerSecond = *maxScans
		case "tool-timeout":
			cfg.ToolTimeout = *toolTimeout
		case "pdftotext-bin":
			cfg.PDFToTextBinary = *pdftotext
		case "converter-bin":
			cfg.ConverterBinary = *converter
		case "pdfinfo-bin":
			cfg.PDFInfoBinary = *pdfinfo
		case "temp-dir":
			cfg.TempDir = *tempDir
		case "native-fallback":
			cfg.NativeFallback = *nativeFallback
		case "hashes":
			cfg.HashAlgorithms = parseCommaSeparated(*hashes)
		case "output":
			cfg.OutputFileName = *output
		case "max-output-file-size":
			cfg.MaxOutputFileSize = *maxOutputFileSize
		case "log-level":
			cfg.LogLevel = *logLevel
		case "metrics-file":
			cfg.MetricsFile = strings.TrimSpace(*metricsFile)
		case "progress":
			cfg.ShowProgress = *progress
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-from-env":
			cfg.OtelFromEnv = *otelFromEnv
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		case "otel-export-paths":
			cfg.OtelExportPaths = *otelExportPaths
		case "otel-export-details":
			cfg.OtelExportDetails = *otelExportDetails
		case "trace-flight":
			cfg.TraceFlight = *traceFlight
		case "trace-flight-file":
			cfg.TraceFlightFile = *traceFlightFile
		case "trace-flight-max-bytes":
			cfg.TraceFlightMaxBytes = *traceFlightMaxBytes
		case "trace-flight-min-age":
			cfg.TraceFlightMinAge = *traceFlightMinAge
		case "stall-threshold":
			cfg.StallThreshold = *stallThreshold
		case "diag-dir":
			cfg.DiagDir = strings.TrimSpace(*diagDir)
		}
	})
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.DeclaredMimeType = strings.ToLower(strings.TrimSpace(cfg.DeclaredMimeType))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.HashAlgorithms = normalizeAlgorithms(cfg.HashAlgorithms)
	if len(cfg.HashAlgorithms) == 0 {
		cfg.HashAlgorithms = []string{"sha256"}
	}
	if strings.TrimSpace(cfg.TempDir) == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.TraceFlight && cfg.TraceFlightFile == "" {
		cfg.TraceFlightFile = "trace-flight.out"
	}
	if len(cfg.StartPaths) == 0 {
		cfg.StartPaths = []string{"."}
	}
	if cfg.Scanner == nil {
		cfg.Scanner = DefaultScannerConfig()
	}
}

func displayHelp() {
	fmt.Println("uploadscan - Upload content-risk scanner")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  uploadscan [options]")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Printf("  %s  comma-separated copyright phrases\n", EnvCopyrightPhrases)
	fmt.Printf("  %s  oversized file ceiling in MB (default: %d)\n", EnvMaxFileSizeMB, DefaultMaxFileSizeMB)
	fmt.Printf("  %s  auto-approval score ceiling (default: %d)\n", EnvAutoApproveThreshold, DefaultAutoApproveThreshold)
	fmt.Printf("  %s  enable auto-approval (default: false)\n", EnvEnableAutoApproval)
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  uploadscan --path \"/srv/uploads/incoming\"")
	fmt.Println("  uploadscan --path \"notes.docx\" --mime application/vnd.openxmlformats-officedocument.wordprocessingml.document")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	return nil
}

func (cfg *Config) validate() error {
	if len(cfg.StartPaths) == 0 {
		return fmt.Errorf("at least one path must be specified")
	}
	if cfg.ConcurrencyLevel <= 0 {
		return fmt.Errorf("concurrency level must be positive")
	}
	if cfg.MaxScansPerSecond < 0 {
		return fmt.Errorf("max-scans-per-second must be zero or positive")
	}
	if cfg.ToolTimeout <= 0 {
		return fmt.Errorf("tool-timeout must be positive")
	}
	if strings.TrimSpace(cfg.PDFToTextBinary) == "" || strings.TrimSpace(cfg.ConverterBinary) == "" || strings.TrimSpace(cfg.PDFInfoBinary) == "" {
		return fmt.Errorf("tool binaries must not be empty")
	}
	for _, algo := range cfg.HashAlgorithms {
		switch algo {
		case "md5", "sha1", "sha256", "blake3", "xxh64":
		default:
			return fmt.Errorf("unsupported hash algorithm: %s", algo)
		}
	}
	if cfg.MaxOutputFileSize < 0 {
		return fmt.Errorf("max-output-file-size must be zero or positive")
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.OtelEndpoint != "" {
		if !strings.HasPrefix(cfg.OtelEndpoint, "http://") && !strings.HasPrefix(cfg.OtelEndpoint, "https://") {
			return fmt.Errorf("otel-endpoint must include scheme (http or https)")
		}
	}
	if cfg.TraceFlightMinAge < 0 {
		return fmt.Errorf("trace-flight-min-age must be zero or positive")
	}
	if cfg.StallThreshold < 0 {
		return fmt.Errorf("stall-threshold must be zero or positive")
	}
	return cfg.Scanner.validate()
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	for i, item := range items {
		items[i] = strings.TrimSpace(item)
	}
	return items
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	if input == "" {
		return headers
	}
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(parts[1])
	}
	return headers
}

func normalizeAlgorithms(items []string) []string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		normalized = append(normalized, item)
	}
	return normalized
}
