package satrain

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// tmpSuffix marks in-flight downloads. The suffix keeps partial files
// invisible to the inventory scanner, so an interrupted run re-detects
// them as absent rather than complete.
const tmpSuffix = ".part"

// fileJob is a unit of work for the download worker pool.
type fileJob struct {
	// keyIdx indexes the requested key this file belongs to.
	keyIdx int

	// file is the remote file to materialize.
	file FileInfo
}

// fileResult is the outcome of one file fetch.
type fileResult struct {
	// keyIdx indexes the requested key this file belongs to.
	keyIdx int

	// file is the attempted file.
	file FileInfo

	// bytes is the number of bytes fetched from the network.
	bytes int64

	// err is nil on success, or the final error after all retries.
	err error
}

// coordinator materializes missing partition files under the data root.
type coordinator struct {
	// server fetches files from the dataset server.
	server *serverClient

	// dataRoot is the local directory files are placed under.
	dataRoot string

	// logger receives diagnostic messages. May be nil.
	logger Logger

	// wg tracks active download workers.
	wg sync.WaitGroup

	// bytesInProgress tracks bytes currently being downloaded across all
	// workers. Updated atomically as bytes arrive from the network.
	bytesInProgress int64
}

// newCoordinator creates a download coordinator.
func newCoordinator(server *serverClient, dataRoot string, logger Logger) *coordinator {
	return &coordinator{server: server, dataRoot: dataRoot, logger: logger}
}

// sizeMatches reports whether a local file satisfies the catalog entry.
// An unknown remote size (<= 0) cannot be verified, so presence suffices.
func sizeMatches(localSize int64, file FileInfo) bool {
	return file.Size <= 0 || localSize == file.Size
}

// ensureLocal downloads every file of the requested keys that is not
// already present with the correct size. Keys are processed in sorted
// order for reproducible logs; files are fetched concurrently by a
// bounded worker pool. A failing file is recorded in the report and never
// aborts the remaining work. The returned error is non-nil only for
// cancellation or a failure to plan the work (e.g. an unreadable data
// root), never for individual file fetches.
func (c *coordinator) ensureLocal(ctx context.Context, catalog *Catalog, keys []PartitionKey, cfg *downloadConfig) (DownloadReport, error) {
	keys = append([]PartitionKey(nil), keys...)
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	reports := make([]KeyReport, len(keys))
	var jobs []fileJob
	enqueued := map[string]bool{}

	for i, key := range keys {
		reports[i] = KeyReport{Key: key, Status: KeySkipped}
		for _, file := range catalog.Files(key) {
			if enqueued[file.Path] {
				// Cumulative subsets can list the same file for two
				// requested keys; it is fetched once.
				reports[i].Skipped++
				continue
			}
			dest := filepath.Join(c.dataRoot, filepath.FromSlash(file.Path))
			if info, err := os.Stat(dest); err == nil && info.Mode().IsRegular() && sizeMatches(info.Size(), file) {
				reports[i].Skipped++
				continue
			}
			enqueued[file.Path] = true
			jobs = append(jobs, fileJob{keyIdx: i, file: file})
		}
	}

	progress := DownloadProgress{FilesTotal: len(jobs)}
	if cfg.progressFn != nil {
		cfg.progressFn(progress)
	}
	if len(jobs) == 0 {
		return DownloadReport{Keys: reports}, nil
	}

	if c.logger != nil {
		c.logger.Info("starting download", "files", len(jobs), "keys", len(keys), "workers", cfg.concurrency)
	}

	atomic.StoreInt64(&c.bytesInProgress, 0)

	jobCh := make(chan fileJob, len(jobs))
	resultCh := make(chan fileResult, len(jobs))
	for _, job := range jobs {
		jobCh <- job
	}
	close(jobCh)

	workers := cfg.concurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}
	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.worker(ctx, jobCh, resultCh, cfg)
	}

	var cancelled error
	for completed := 0; completed < len(jobs); completed++ {
		select {
		case res := <-resultCh:
			rep := &reports[res.keyIdx]
			if res.err != nil {
				rep.Failed = append(rep.Failed, FileFailure{Path: res.file.Path, Err: res.err.Error()})
				progress.FilesFailed++
				if c.logger != nil {
					c.logger.Error("file download failed", "path", res.file.Path, "error", res.err)
				}
			} else {
				rep.Fetched++
			}
			progress.FilesCompleted++
			progress.BytesFetched += res.bytes
			progress.BytesInProgress = atomic.LoadInt64(&c.bytesInProgress)
			if cfg.progressFn != nil {
				cfg.progressFn(progress)
			}
		case <-ctx.Done():
			cancelled = ctx.Err()
		}
		if cancelled != nil {
			break
		}
	}

	c.wg.Wait()

	// A worker's cancellation can surface as a result before the collector
	// observes ctx.Done; report cancellation either way.
	if cancelled == nil {
		cancelled = ctx.Err()
	}

	for i := range reports {
		rep := &reports[i]
		switch {
		case rep.Fetched == 0 && len(rep.Failed) == 0:
			rep.Status = KeySkipped
		case len(rep.Failed) > 0:
			rep.Status = KeyPartial
		default:
			rep.Status = KeyComplete
		}
	}
	return DownloadReport{Keys: reports}, cancelled
}

// worker drains the job channel, fetching one file at a time.
func (c *coordinator) worker(ctx context.Context, jobs <-chan fileJob, results chan<- fileResult, cfg *downloadConfig) {
	defer c.wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			bytes, err := c.fetchWithRetry(ctx, job.file, cfg)
			select {
			case results <- fileResult{keyIdx: job.keyIdx, file: job.file, bytes: bytes, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// fetchWithRetry fetches one file to a temporary path and renames it into
// place, retrying transient failures with exponential backoff. On
// cancellation or failure the temporary file is removed, never committed.
func (c *coordinator) fetchWithRetry(ctx context.Context, file FileInfo, cfg *downloadConfig) (int64, error) {
	dest := filepath.Join(c.dataRoot, filepath.FromSlash(file.Path))
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("%w: creating directory for %s: %v", ErrStorage, file.Path, err)
	}

	// The temp file lives next to its destination so the final rename
	// stays within one filesystem and is atomic.
	tmp := dest + tmpSuffix

	backoff := cfg.initialBackoff
	var lastErr error
	for attempt := 0; attempt <= cfg.retries; attempt++ {
		if attempt > 0 {
			if c.logger != nil {
				c.logger.Warn("retrying download", "path", file.Path, "attempt", attempt, "backoff", backoff)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}

		var read int64
		n, err := c.server.fetchFile(ctx, file.Path, tmp, func(delta int64) {
			atomic.AddInt64(&c.bytesInProgress, delta)
			read += delta
		})
		if read > 0 {
			atomic.AddInt64(&c.bytesInProgress, -read)
		}
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			lastErr = err
			continue
		}
		if !sizeMatches(n, file) {
			os.Remove(tmp)
			lastErr = fmt.Errorf("%s: got %d bytes, expected %d: %w", file.Path, n, file.Size, ErrNetwork)
			continue
		}
		if err := os.Rename(tmp, dest); err != nil {
			os.Remove(tmp)
			return 0, fmt.Errorf("%w: placing %s: %v", ErrStorage, file.Path, err)
		}
		if c.logger != nil {
			c.logger.Debug("file downloaded", "path", file.Path, "bytes", n)
		}
		return n, nil
	}
	return 0, lastErr
}
