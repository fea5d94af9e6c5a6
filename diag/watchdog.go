// Package diag watches a running scan for stalls. When no upload finishes
// within the threshold it writes an event naming the uploads still in
// flight, a goroutine profile and, if enabled, a flight recorder window.
package diag

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"sort"
	"sync"
	"time"

	"uploadscan/logger"
)

type profileWriter interface {
	WriteTo(w io.Writer, debug int) error
}

type Options struct {
	StallThreshold     time.Duration
	Dir                string
	DumpFlightRecorder func(path string) error
	NowFn              func() time.Time
	ProfileLookupFn    func(name string) profileWriter
}

type Watchdog struct {
	threshold          time.Duration
	dir                string
	dumpFlightRecorder func(path string) error
	nowFn              func() time.Time
	profileLookupFn    func(name string) profileWriter

	mu         sync.Mutex
	inFlight   map[uint64]inFlightUpload
	nextID     uint64
	completed  int64
	lastDoneAt time.Time
	lastDumpAt time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

type inFlightUpload struct {
	path    string
	started time.Time
}

// StallEvent is written as JSON next to the profiles of a stall.
type StallEvent struct {
	Event      string          `json:"event"`
	Timestamp  string          `json:"timestamp"`
	Completed  int64           `json:"completed"`
	Threshold  int64           `json:"threshold_ms"`
	StalledFor int64           `json:"stalled_ms"`
	InFlight   []InFlightEntry `json:"in_flight"`
}

type InFlightEntry struct {
	Path      string `json:"path"`
	RunningMs int64  `json:"running_ms"`
}

func NewWatchdog(opts Options) *Watchdog {
	nowFn := opts.NowFn
	if nowFn == nil {
		nowFn = time.Now
	}
	profileLookup := opts.ProfileLookupFn
	if profileLookup == nil {
		profileLookup = func(name string) profileWriter {
			if p := pprof.Lookup(name); p != nil {
				return p
			}
			return nil
		}
	}
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	return &Watchdog{
		threshold:          opts.StallThreshold,
		dir:                dir,
		dumpFlightRecorder: opts.DumpFlightRecorder,
		nowFn:              nowFn,
		profileLookupFn:    profileLookup,
		inFlight:           make(map[uint64]inFlightUpload),
		lastDoneAt:         nowFn(),
	}
}

// Begin marks path as being scanned. The returned func marks it finished and
// must be called exactly once. A nil Watchdog hands back a no-op.
func (w *Watchdog) Begin(path string) func() {
	if w == nil {
		return func() {}
	}
	w.mu.Lock()
	now := w.nowFn()
	if len(w.inFlight) == 0 {
		w.lastDoneAt = now
	}
	w.nextID++
	id := w.nextID
	w.inFlight[id] = inFlightUpload{path: path, started: now}
	w.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.inFlight, id)
			w.completed++
			w.lastDoneAt = w.nowFn()
			w.mu.Unlock()
		})
	}
}

// Start polls until ctx is done or Close is called. It does nothing when the
// threshold is not positive.
func (w *Watchdog) Start(ctx context.Context) {
	if w == nil || w.threshold <= 0 || w.stopCh != nil {
		return
	}
	w.mu.Lock()
	w.lastDoneAt = w.nowFn()
	w.mu.Unlock()

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	interval := min(max(w.threshold/2, 250*time.Millisecond), 2*time.Second)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		defer close(w.doneCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.probe(w.nowFn())
			}
		}
	}()
}

func (w *Watchdog) Close() {
	if w == nil || w.stopCh == nil {
		return
	}
	close(w.stopCh)
	<-w.doneCh
	w.stopCh = nil
	w.doneCh = nil
}

// probe dumps at most once per threshold while the stall lasts. Nothing in
// flight is idle, not stalled.
func (w *Watchdog) probe(now time.Time) {
	w.mu.Lock()
	if len(w.inFlight) == 0 {
		w.mu.Unlock()
		return
	}
	stalledFor := now.Sub(w.lastDoneAt)
	if stalledFor < w.threshold || (!w.lastDumpAt.IsZero() && now.Sub(w.lastDumpAt) < w.threshold) {
		w.mu.Unlock()
		return
	}
	w.lastDumpAt = now
	event := StallEvent{
		Event:      "upload_scan_stalled",
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
		Completed:  w.completed,
		Threshold:  w.threshold.Milliseconds(),
		StalledFor: stalledFor.Milliseconds(),
		InFlight:   make([]InFlightEntry, 0, len(w.inFlight)),
	}
	for _, u := range w.inFlight {
		event.InFlight = append(event.InFlight, InFlightEntry{Path: u.path, RunningMs: now.Sub(u.started).Milliseconds()})
	}
	w.mu.Unlock()

	sort.Slice(event.InFlight, func(i, j int) bool {
		return event.InFlight[i].RunningMs > event.InFlight[j].RunningMs
	})
	logger.Warnf("No upload finished for %s; %d still in flight", stalledFor.Round(time.Millisecond), len(event.InFlight))
	if err := w.dump(now, event); err != nil {
		logger.Warnf("Stall diagnostics dump failed: %v", err)
	}
}

func (w *Watchdog) dump(now time.Time, event StallEvent) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}
	ts := now.UTC().Format("20060102-150405.000")
	b, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(w.dir, fmt.Sprintf("uploadscan-stall-%s.json", ts)), b, 0600); err != nil {
		return err
	}
	if _, err := w.writeProfile("goroutine", 2, ts); err != nil {
		logger.Warnf("Goroutine profile dump failed: %v", err)
	}
	if w.dumpFlightRecorder != nil {
		if err := w.dumpFlightRecorder(filepath.Join(w.dir, fmt.Sprintf("uploadscan-flight-%s.out", ts))); err != nil {
			logger.Warnf("Flight recorder dump failed: %v", err)
		}
	}
	return nil
}

func (w *Watchdog) writeProfile(name string, debug int, ts string) (string, error) {
	profile := w.profileLookupFn(name)
	if profile == nil {
		return "", fmt.Errorf("pprof profile %q unavailable", name)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("uploadscan-%s-%s.pprof", name, ts))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	if err := profile.WriteTo(f, debug); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
