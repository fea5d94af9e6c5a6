// Package metrics records scan and tool counters in a private Prometheus
// registry that can be dumped for the node-exporter textfile collector.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"uploadscan/tools"
)

const namespace = "uploadscan"

// Collector satisfies scanner.Collector and tools.Observer.
type Collector struct {
	registry *prometheus.Registry

	scansTotal   *prometheus.CounterVec
	scanDuration prometheus.Histogram
	toolsTotal   *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec

	mu           sync.Mutex
	bucketCounts map[string]int
	toolFailures int
	toolTimeouts int
	startTime    time.Time
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed upload scans by risk bucket.",
		}, []string{"bucket"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of a single upload scan.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		toolsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_invocations_total",
			Help:      "External tool invocations by outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Wall time of external tool invocations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		bucketCounts: make(map[string]int),
		startTime:    time.Now(),
	}
	c.registry.MustRegister(
		c.scansTotal,
		c.scanDuration,
		c.toolsTotal,
		c.toolDuration,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) ObserveScan(bucket string, elapsed time.Duration) {
	c.scansTotal.WithLabelValues(bucket).Inc()
	c.scanDuration.Observe(elapsed.Seconds())
	c.mu.Lock()
	c.bucketCounts[bucket]++
	c.mu.Unlock()
}

func (c *Collector) ObserveTool(tool, outcome string, elapsed time.Duration) {
	c.toolsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
	c.mu.Lock()
	switch outcome {
	case tools.OutcomeError:
		c.toolFailures++
	case tools.OutcomeTimeout:
		c.toolTimeouts++
	}
	c.mu.Unlock()
}

// Summary is the run total written as the final output record.
type Summary struct {
	StartTime    string         `json:"start_time"`
	EndTime      string         `json:"end_time"`
	UploadsTotal int            `json:"uploads_total"`
	Buckets      map[string]int `json:"buckets"`
	ToolFailures int            `json:"tool_failures"`
	ToolTimeouts int            `json:"tool_timeouts"`
}

func (c *Collector) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Summary{
		StartTime:    c.startTime.UTC().Format(time.RFC3339),
		EndTime:      time.Now().UTC().Format(time.RFC3339),
		Buckets:      make(map[string]int, len(c.bucketCounts)),
		ToolFailures: c.toolFailures,
		ToolTimeouts: c.toolTimeouts,
	}
	for bucket, n := range c.bucketCounts {
		s.Buckets[bucket] = n
		s.UploadsTotal += n
	}
	return s
}

// WriteTextfile atomically writes the registry in text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
