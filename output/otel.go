package output

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"uploadscan/config"
	"uploadscan/logger"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
)

type otelLogger struct {
	provider *sdklog.LoggerProvider
	logger   otelLog.Logger
	timeout  time.Duration
	endpoint string
	policy   otelPolicy
}

type otelPolicy struct {
	includePaths   bool
	includeDetails bool
}

func newOtelLogger(cfg *config.Config) (*otelLogger, error) {
	if cfg == nil {
		return nil, nil
	}
	endpoint := resolveOtelEndpoint(cfg)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("otel endpoint must include scheme (http or https)")
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(endpoint)}
	if len(cfg.OtelHeaders) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.OtelHeaders))
	}
	if cfg.OtelTimeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.OtelTimeout))
	}

	exp, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	serviceName := cfg.OtelServiceName
	if serviceName == "" {
		serviceName = "uploadscan"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(config.Version),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)

	return &otelLogger{
		provider: provider,
		logger:   provider.Logger("uploadscan"),
		timeout:  cfg.OtelTimeout,
		endpoint: endpoint,
		policy: otelPolicy{
			includePaths:   cfg.OtelExportPaths,
			includeDetails: cfg.OtelExportDetails,
		},
	}, nil
}

func resolveOtelEndpoint(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	if endpoint := strings.TrimSpace(cfg.OtelEndpoint); endpoint != "" {
		return endpoint
	}
	if !cfg.OtelFromEnv {
		return ""
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

func (o *otelLogger) Endpoint() string {
	if o == nil {
		return ""
	}
	return o.endpoint
}

func (o *otelLogger) Emit(recordType string, payload any) {
	if o == nil || o.logger == nil {
		return
	}
	data := sanitizePayload(recordType, payloadToMap(payload), o.policy)

	now := time.Now()
	var record otelLog.Record
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetEventName("uploadscan.record")
	record.SetSeverity(severityFor(recordType, data))
	record.AddAttributes(
		otelLog.String("record_type", recordType),
		otelLog.String("schema_version", SchemaVersion),
	)
	if attrs := semanticAttributes(recordType, data, o.policy); len(attrs) > 0 {
		record.AddAttributes(attrs...)
	}
	if data != nil {
		record.SetBody(toLogValue(data))
	}

	o.logger.Emit(context.Background(), record)
}

func (o *otelLogger) Shutdown() {
	if o == nil || o.provider == nil {
		return
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.provider.Shutdown(ctx); err != nil {
		logger.Debugf("OTEL shutdown failed: %v", err)
	}
}

// severityFor raises scans that need a human to WARN so collectors can route
// them without parsing the body.
func severityFor(recordType string, data map[string]any) otelLog.Severity {
	if recordType != RecordScan {
		return otelLog.SeverityInfo
	}
	decision, _ := data["decision"].(map[string]any)
	if getStringField(decision, "status") == "pending_review" {
		return otelLog.SeverityWarn
	}
	return otelLog.SeverityInfo
}

// sanitizePayload never mutates data. Scan records lose their path and
// detail evidence; system info loses resolved tool paths.
func sanitizePayload(recordType string, data map[string]any, policy otelPolicy) map[string]any {
	if data == nil {
		return nil
	}
	switch recordType {
	case RecordScan:
		sanitized := cloneMap(data)
		if !policy.includePaths {
			delete(sanitized, "path")
		}
		if !policy.includeDetails {
			if result, ok := data["result"].(map[string]any); ok {
				r := cloneMap(result)
				if details, ok := result["details"].(map[string]any); ok {
					r["details"] = detailCounts(details)
				}
				sanitized["result"] = r
			}
		}
		return sanitized
	case RecordSystemInfo:
		if policy.includePaths {
			return data
		}
		sanitized := cloneMap(data)
		if tools, ok := data["tools"].([]any); ok {
			stripped := make([]any, 0, len(tools))
			for _, t := range tools {
				if m, ok := t.(map[string]any); ok {
					m = cloneMap(m)
					delete(m, "path")
					stripped = append(stripped, m)
				}
			}
			sanitized["tools"] = stripped
		}
		return sanitized
	default:
		return data
	}
}

// detailCounts replaces evidence lists with their lengths. The error text is
// dropped because it usually embeds the upload path.
func detailCounts(details map[string]any) map[string]any {
	counts := make(map[string]any, len(details))
	for key, value := range details {
		if list, ok := value.([]any); ok {
			counts[key+"_count"] = len(list)
		}
	}
	if _, ok := details["error"]; ok {
		counts["error"] = true
	}
	return counts
}

func cloneMap(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func toLogValue(value any) otelLog.Value {
	switch v := value.(type) {
	case nil:
		return otelLog.Value{}
	case string:
		return otelLog.StringValue(v)
	case bool:
		return otelLog.BoolValue(v)
	case int:
		return otelLog.IntValue(v)
	case int64:
		return otelLog.Int64Value(v)
	case float64:
		if v == float64(int64(v)) {
			return otelLog.Int64Value(int64(v))
		}
		return otelLog.Float64Value(v)
	case map[string]any:
		return otelLog.MapValue(toLogKeyValues(v)...)
	case map[string]string:
		kvs := make([]otelLog.KeyValue, 0, len(v))
		for _, k := range slices.Sorted(maps.Keys(v)) {
			kvs = append(kvs, otelLog.String(k, v[k]))
		}
		return otelLog.MapValue(kvs...)
	case []string:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, otelLog.StringValue(item))
		}
		return otelLog.SliceValue(values...)
	case []any:
		values := make([]otelLog.Value, 0, len(v))
		for _, item := range v {
			values = append(values, toLogValue(item))
		}
		return otelLog.SliceValue(values...)
	default:
		return otelLog.StringValue(fmt.Sprint(v))
	}
}

// toLogKeyValues orders keys so exported bodies are stable across runs.
func toLogKeyValues(values map[string]any) []otelLog.KeyValue {
	kvs := make([]otelLog.KeyValue, 0, len(values))
	for _, key := range slices.Sorted(maps.Keys(values)) {
		kvs = append(kvs, otelLog.KeyValue{Key: key, Value: toLogValue(values[key])})
	}
	return kvs
}

func semanticAttributes(recordType string, data map[string]any, policy otelPolicy) []otelLog.KeyValue {
	if len(data) == 0 {
		return nil
	}
	switch recordType {
	case RecordScan:
		return scanSemanticAttributes(data, policy)
	case RecordSystemInfo:
		return systemSemanticAttributes(data)
	case RecordMetrics:
		return metricsSemanticAttributes(data)
	default:
		return nil
	}
}

func scanSemanticAttributes(data map[string]any, policy otelPolicy) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue

	path := getStringField(data, "path")
	name := getStringField(data, "file_name")
	if policy.includePaths && path != "" {
		kvs = append(kvs, otelLog.String(string(semconv.FilePathKey), path))
		kvs = append(kvs, otelLog.String(string(semconv.FileDirectoryKey), filepath.Dir(path)))
	}
	if name != "" {
		kvs = append(kvs, otelLog.String(string(semconv.FileNameKey), name))
		if ext := strings.TrimPrefix(filepath.Ext(name), "."); ext != "" {
			kvs = append(kvs, otelLog.String(string(semconv.FileExtensionKey), ext))
		}
	}
	if size, ok := getInt64Field(data, "size"); ok {
		kvs = append(kvs, otelLog.Int64(string(semconv.FileSizeKey), size))
	}

	kvs = appendStringAttr(kvs, "uploadscan.scan.id", getStringField(data, "id"))
	kvs = appendStringAttr(kvs, "uploadscan.file.mime_type", getStringField(data, "mime_type"))
	if duration, ok := getInt64Field(data, "duration_ms"); ok {
		kvs = append(kvs, otelLog.Int64("uploadscan.scan.duration_ms", duration))
	}
	if hashes, ok := data["hashes"].(map[string]any); ok {
		for _, algo := range slices.Sorted(maps.Keys(hashes)) {
			if s, ok := hashes[algo].(string); ok && s != "" {
				kvs = append(kvs, otelLog.String("uploadscan.file.hash."+algo, s))
			}
		}
	}

	if result, ok := data["result"].(map[string]any); ok {
		if score, ok := getInt64Field(result, "riskScore"); ok {
			kvs = append(kvs, otelLog.Int64("uploadscan.scan.risk_score", score))
		}
		if flags := getStringSliceField(result, "flags"); len(flags) > 0 {
			kvs = append(kvs, otelLog.KeyValue{Key: "uploadscan.scan.flags", Value: toLogValue(flags)})
		}
	}
	if decision, ok := data["decision"].(map[string]any); ok {
		kvs = appendStringAttr(kvs, "uploadscan.decision.status", getStringField(decision, "status"))
	}
	return kvs
}

func systemSemanticAttributes(data map[string]any) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue

	kvs = appendStringAttr(kvs, string(semconv.HostNameKey), getStringField(data, "hostname"))
	kvs = appendStringAttr(kvs, string(semconv.OSNameKey), getStringField(data, "platform"))
	kvs = appendStringAttr(kvs, string(semconv.OSVersionKey), getStringField(data, "platform_version"))
	kvs = appendStringAttr(kvs, "uploadscan.system.os", getStringField(data, "os"))
	if n, ok := getInt64Field(data, "cpu_count"); ok {
		kvs = append(kvs, otelLog.Int64("uploadscan.system.cpu_count", n))
	}
	if tools, ok := data["tools"].([]any); ok {
		var available int64
		for _, t := range tools {
			if m, ok := t.(map[string]any); ok && m["available"] == true {
				available++
			}
		}
		kvs = append(kvs, otelLog.Int64("uploadscan.system.tools_available", available))
		kvs = append(kvs, otelLog.Int64("uploadscan.system.tools_total", int64(len(tools))))
	}
	return kvs
}

func metricsSemanticAttributes(data map[string]any) []otelLog.KeyValue {
	var kvs []otelLog.KeyValue

	kvs = appendStringAttr(kvs, "uploadscan.metrics.start_time", getStringField(data, "start_time"))
	kvs = appendStringAttr(kvs, "uploadscan.metrics.end_time", getStringField(data, "end_time"))
	for _, key := range []string{"uploads_total", "tool_failures", "tool_timeouts"} {
		if n, ok := getInt64Field(data, key); ok {
			kvs = append(kvs, otelLog.Int64("uploadscan.metrics."+key, n))
		}
	}
	if buckets, ok := data["buckets"].(map[string]any); ok {
		for _, bucket := range slices.Sorted(maps.Keys(buckets)) {
			if n, ok := getInt64Field(buckets, bucket); ok {
				kvs = append(kvs, otelLog.Int64("uploadscan.metrics.bucket."+bucket, n))
			}
		}
	}
	return kvs
}

// payloadToMap round-trips structs through JSON so sanitisation and
// attribute mapping work on the same keys the NDJSON file carries.
func payloadToMap(payload any) map[string]any {
	switch v := payload.(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	default:
		data, err := jsonMarshal(payload)
		if err != nil {
			return nil
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}

func getStringField(values map[string]any, key string) string {
	value, ok := values[key]
	if !ok || value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return fmt.Sprint(value)
}

func getInt64Field(values map[string]any, key string) (int64, bool) {
	value, ok := values[key]
	if !ok || value == nil {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		if parsed, err := v.Int64(); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func getStringSliceField(values map[string]any, key string) []string {
	switch v := values[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	default:
		return nil
	}
}

func appendStringAttr(kvs []otelLog.KeyValue, key, value string) []otelLog.KeyValue {
	if value == "" {
		return kvs
	}
	return append(kvs, otelLog.String(key, value))
}
