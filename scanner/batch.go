package scanner

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"uploadscan/logger"
)

type BatchOptions struct {
	// Concurrency bounds simultaneous scans, and so the number of live
	// child processes. Zero means one worker per CPU.
	Concurrency int
	// Limiter, when set, paces scan starts.
	Limiter *rate.Limiter
	// Track, when set, is called before each scan; the returned func is
	// called once the scan finishes.
	Track func(path string) (done func())
	// OnResult is called from worker goroutines as each scan completes.
	OnResult func(index int, up Upload, res Result, elapsed time.Duration)
}

// ScanAll scans uploads on a fixed worker pool and returns results in input
// order. Uploads not yet scanned when ctx is cancelled come back as
// scan_failed.
func (s *Scanner) ScanAll(ctx context.Context, uploads []Upload, opts BatchOptions) []Result {
	results := make([]Result, len(uploads))
	if len(uploads) == 0 {
		return results
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(uploads))

	tasks := make(chan int, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range tasks {
				if opts.Limiter != nil {
					if err := opts.Limiter.Wait(ctx); err != nil {
						logger.Debugf("Rate limiter wait for %s: %v", uploads[i].Path, err)
					}
				}
				start := time.Now()
				done := func() {}
				if opts.Track != nil {
					done = opts.Track(uploads[i].Path)
				}
				results[i] = s.Scan(ctx, uploads[i])
				done()
				if opts.OnResult != nil {
					opts.OnResult(i, uploads[i], results[i], time.Since(start))
				}
			}
		}()
	}

	for i := range uploads {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	return results
}
