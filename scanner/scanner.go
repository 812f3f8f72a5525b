// Package scanner walks the corpus, fingerprints files on a bounded worker
// pool and drives the full dedup pipeline.
package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imagededup/config"
	"imagededup/database"
	"imagededup/imageprocessor"
	"imagededup/logging"
	"imagededup/types"
	"imagededup/utils"
)

// ScanOptions bundles everything a scan needs.
type ScanOptions struct {
	FolderPath string
	Config     config.Config
	// Checkpoint may be nil to force a full re-hash.
	Checkpoint *database.Checkpoint
	// Quiet suppresses the progress line (used by tests).
	Quiet bool
}

// SkippedFile is one file excluded from the corpus, with the reason kept so
// the end-of-run summary can show it. Silent data loss is not an option.
type SkippedFile struct {
	Path   string
	Reason string
}

// Summary aggregates per-file outcomes of a scan.
type Summary struct {
	TotalCandidates int
	Processed       int
	FromCheckpoint  int
	DecodeErrors    int
	MetadataErrors  int
	IOErrors        int
	Skipped         []SkippedFile
	Elapsed         time.Duration
}

type fileEntry struct {
	path string
	info os.FileInfo
}

// CollectRecords walks the folder and fingerprints every candidate file.
// Records come back sorted by path so downstream id assignment is
// deterministic. Per-file failures never abort the run; only cancellation
// and catastrophic environment failures do.
func CollectRecords(ctx context.Context, opts ScanOptions) ([]types.ImageRecord, *Summary, error) {
	startTime := time.Now()
	summary := &Summary{}

	entries, err := collectCandidates(opts, summary)
	if err != nil {
		return nil, summary, err
	}
	summary.TotalCandidates = len(entries)

	logging.DebugLog("found %d candidate files under %s", len(entries), opts.FolderPath)

	tracker := newProgressTracker(len(entries), opts.Quiet)
	defer tracker.stop()

	exiftoolReader := imageprocessor.NewExiftoolReader()
	defer exiftoolReader.Close()
	extractor := imageprocessor.NewExtractor(exiftoolReader)

	var (
		mu      sync.Mutex
		records []types.ImageRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Config.WorkerCount())

	for _, entry := range entries {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			rec, result := processFile(extractor, opts, entry)
			tracker.record(result)

			mu.Lock()
			defer mu.Unlock()
			if result.Success {
				records = append(records, rec)
				if result.MetadataMiss {
					summary.MetadataErrors++
				}
				if result.FromCheckpoint {
					summary.FromCheckpoint++
				}
				summary.Processed++
				return nil
			}

			skipped := SkippedFile{Path: entry.path, Reason: result.Err.Error()}
			summary.Skipped = append(summary.Skipped, skipped)
			var decodeErr *types.DecodeError
			var ioErr *types.IOError
			switch {
			case errors.As(result.Err, &decodeErr):
				summary.DecodeErrors++
			case errors.As(result.Err, &ioErr):
				summary.IOErrors++
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, summary, err
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	sort.Slice(summary.Skipped, func(i, j int) bool {
		return summary.Skipped[i].Path < summary.Skipped[j].Path
	})
	summary.Elapsed = time.Since(startTime)
	return records, summary, nil
}

// collectCandidates walks the tree and returns the files the pipeline will
// fingerprint. The walker skips dotfiles and applies the include/exclude
// filters; unreadable paths are counted, not fatal.
func collectCandidates(opts ScanOptions, summary *Summary) ([]fileEntry, error) {
	registry := imageprocessor.NewLoaderRegistry()
	var entries []fileEntry

	err := filepath.Walk(opts.FolderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logging.LogWarning("cannot access %s: %v", path, err)
			summary.IOErrors++
			summary.Skipped = append(summary.Skipped, SkippedFile{Path: path, Reason: err.Error()})
			return nil
		}
		name := filepath.Base(path)
		if info.IsDir() {
			if path != opts.FolderPath && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !utils.MatchesFilters(path, opts.Config.Include, opts.Config.Exclude) {
			return nil
		}
		if registry.CanLoadFile(path) {
			entries = append(entries, fileEntry{path: path, info: info})
		}
		return nil
	})
	return entries, err
}

// processFile fingerprints one file, consulting the checkpoint first.
func processFile(extractor *imageprocessor.Extractor, opts ScanOptions, entry fileEntry) (types.ImageRecord, ProcessResult) {
	result := ProcessResult{Path: entry.path}

	if opts.Checkpoint != nil {
		if rec, ok := opts.Checkpoint.Lookup(entry.path, entry.info.Size(), entry.info.ModTime()); ok {
			logging.DebugLog("checkpoint hit: %s", entry.path)
			result.Success = true
			result.FromCheckpoint = true
			return rec, result
		}
	}

	raw, err := readFileRetry(entry.path)
	if err != nil {
		result.Err = err
		return types.ImageRecord{}, result
	}

	res, err := extractor.Extract(entry.path, raw, entry.info.ModTime())
	if err != nil {
		result.Err = err
		return types.ImageRecord{}, result
	}
	result.Success = true
	result.MetadataMiss = res.MetadataErr != nil

	if opts.Checkpoint != nil {
		if err := opts.Checkpoint.Store(res.Record); err != nil {
			logging.LogWarning("checkpoint write failed: %v", err)
		}
	}
	return res.Record, result
}

const (
	readRetries = 3
	readBackoff = 100 * time.Millisecond
)

// readFileRetry reads a file with bounded linear-backoff retries. Persistent
// failures come back as *types.IOError and the file is skipped.
func readFileRetry(path string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= readRetries; attempt++ {
		raw, err := os.ReadFile(path)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if os.IsNotExist(err) || os.IsPermission(err) {
			break
		}
		time.Sleep(readBackoff * time.Duration(attempt))
	}
	return nil, &types.IOError{Path: path, Op: "read", Err: lastErr}
}
