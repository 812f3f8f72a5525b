package scanner

import (
	"fmt"
	"sync"
	"time"

	"imagededup/logging"
)

// ProcessResult is the outcome of fingerprinting one file.
type ProcessResult struct {
	Path           string
	Success        bool
	FromCheckpoint bool
	MetadataMiss   bool
	Err            error
}

// ProgressTracker tracks and periodically displays scan progress.
type ProgressTracker struct {
	mu             sync.Mutex
	processed      int
	errors         int
	fromCheckpoint int
	totalFiles     int
	ticker         *time.Ticker
	done           chan bool
	quiet          bool
}

func newProgressTracker(totalFiles int, quiet bool) *ProgressTracker {
	tracker := &ProgressTracker{
		ticker:     time.NewTicker(500 * time.Millisecond),
		done:       make(chan bool),
		totalFiles: totalFiles,
		quiet:      quiet,
	}
	go tracker.displayProgress()
	return tracker
}

func (p *ProgressTracker) displayProgress() {
	for {
		select {
		case <-p.done:
			return
		case <-p.ticker.C:
			if p.quiet {
				continue
			}
			p.mu.Lock()
			if p.errors > 0 {
				fmt.Printf("\rProgress: %d/%d (cached: %d, errors: %d)",
					p.processed, p.totalFiles, p.fromCheckpoint, p.errors)
			} else {
				fmt.Printf("\rProgress: %d/%d (cached: %d)",
					p.processed, p.totalFiles, p.fromCheckpoint)
			}
			p.mu.Unlock()
		}
	}
}

// record folds one result into the counters.
func (p *ProgressTracker) record(result ProcessResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processed++
	if result.FromCheckpoint {
		p.fromCheckpoint++
	}
	if !result.Success {
		p.errors++
		if result.Err != nil {
			logging.LogImageProcessed(result.Path, false, result.Err.Error())
		}
	} else {
		logging.LogImageProcessed(result.Path, true, "")
	}
}

func (p *ProgressTracker) stop() {
	p.ticker.Stop()
	p.done <- true
}
