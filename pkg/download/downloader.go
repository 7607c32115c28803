// Package download fetches files to disk in bulk, bounded by a shared
// concurrency gate, with per-item retries and a record of what failed.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/fetch"
	"github.com/Sriram-PR/webfetch/pkg/obs"
	"github.com/Sriram-PR/webfetch/pkg/persist"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Item is one download request: source URL and destination file path.
type Item struct {
	URL  string
	Dest string
}

// Downloader streams files to disk over a shared HTTP client, with up to
// Capacity() transfers in flight at once. Failed items accumulate in
// FailedDownloads for later persistence or retry.
type Downloader struct {
	client    *http.Client
	gate      *fetch.Gate
	tracker   *obs.ErrorTracker
	userAgent string
	chunkSize int
	policy    fetch.RetryPolicy
	outputDir string

	total     atomic.Int64
	completed atomic.Int64

	failedMu sync.Mutex
	failed   []Item

	log *logrus.Entry
}

// NewDownloader creates a Downloader sharing the given client.
// concurrentLimit below 1 defaults to 50, chunkSize below 1 to 8192.
func NewDownloader(client *http.Client, tracker *obs.ErrorTracker, userAgent string, concurrentLimit, chunkSize int, policy fetch.RetryPolicy, outputDir string, log *logrus.Entry) *Downloader {
	if concurrentLimit < 1 {
		concurrentLimit = 50
	}
	if chunkSize < 1 {
		chunkSize = 8192
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 3
	}
	return &Downloader{
		client:    client,
		gate:      fetch.NewGate(concurrentLimit, log),
		tracker:   tracker,
		userAgent: userAgent,
		chunkSize: chunkSize,
		policy:    policy,
		outputDir: outputDir,
		log:       log,
	}
}

// DownloadBatch downloads all items concurrently and returns a slice of
// outcomes aligned with the input: result[i] is true iff items[i] was
// written to disk. Items that exhaust their retries are appended to the
// failed list.
func (d *Downloader) DownloadBatch(ctx context.Context, items []Item) []bool {
	results := make([]bool, len(items))
	if len(items) == 0 {
		return results
	}

	d.total.Add(int64(len(items)))
	progress := obs.NewProgressTracker(d.log, len(items), 100)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item) {
			defer wg.Done()
			if err := d.downloadOne(ctx, item); err != nil {
				d.recordFailure(item, err)
				return
			}
			d.completed.Add(1)
			results[i] = true
			progress.Update(1, "")
		}(i, item)
	}
	wg.Wait()

	progress.Update(0, "Batch download complete")
	return results
}

// downloadOne fetches a single item with retries. A 404 or context
// cancellation stops the attempts immediately.
func (d *Downloader) downloadOne(ctx context.Context, item Item) error {
	var lastErr error
	for attempt := 0; attempt < d.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		abort, err := d.attempt(ctx, item, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if abort {
			return err
		}

		if attempt < d.policy.MaxRetries-1 {
			delay := d.policy.Backoff(attempt)
			d.log.WithFields(logrus.Fields{"url": item.URL, "attempt": attempt + 1, "delay": delay}).Warn("Retrying download...")
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
			timer.Stop()
		}
	}
	return fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

func (d *Downloader) attempt(ctx context.Context, item Item, attempt int) (abort bool, err error) {
	if err := d.gate.Enter(ctx); err != nil {
		return true, err
	}
	defer d.gate.Leave()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if reqErr != nil {
		err = fmt.Errorf("%w: %q: %v", utils.ErrRequestCreation, item.URL, reqErr)
		d.record(utils.KindUnexpectedError, err, item, attempt)
		return true, err
	}
	if d.userAgent != "" {
		req.Header.Set("User-Agent", d.userAgent)
	}

	resp, doErr := d.client.Do(req)
	if doErr != nil {
		if errors.Is(doErr, context.Canceled) || errors.Is(doErr, context.DeadlineExceeded) {
			return true, doErr
		}
		d.record(utils.ClassifyAttempt(doErr), doErr, item, attempt)
		return false, doErr
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		written, writeErr := persist.WriteChunks(item.Dest, resp.Body, d.chunkSize)
		if writeErr != nil {
			d.record(utils.KindFileError, writeErr, item, attempt)
			return false, writeErr
		}
		d.log.WithFields(logrus.Fields{"url": item.URL, "dest": item.Dest, "bytes": written}).Debug("Downloaded")
		return false, nil

	case resp.StatusCode == http.StatusNotFound:
		err = fmt.Errorf("%w: status %d for %q", utils.ErrNotFound, resp.StatusCode, item.URL)
		d.record(utils.KindDownloadError, err, item, attempt)
		return true, err

	case resp.StatusCode >= 500:
		err = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, resp.StatusCode, resp.Status)

	case resp.StatusCode >= 400:
		err = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, resp.StatusCode, resp.Status)

	default:
		err = fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, resp.StatusCode, resp.Status)
	}

	d.record(utils.KindDownloadError, err, item, attempt)
	return false, err
}

func (d *Downloader) recordFailure(item Item, err error) {
	d.failedMu.Lock()
	d.failed = append(d.failed, item)
	d.failedMu.Unlock()
	d.log.WithError(err).WithFields(logrus.Fields{"url": item.URL, "dest": item.Dest}).Error("Download failed permanently")
}

func (d *Downloader) record(kind string, err error, item Item, attempt int) {
	if d.tracker == nil {
		return
	}
	d.tracker.RecordErr(kind, err, map[string]interface{}{
		"url":     item.URL,
		"dest":    item.Dest,
		"attempt": attempt + 1,
	})
}

// FailedDownloads returns a copy of the items that exhausted retries.
func (d *Downloader) FailedDownloads() []Item {
	d.failedMu.Lock()
	defer d.failedMu.Unlock()
	out := make([]Item, len(d.failed))
	copy(out, d.failed)
	return out
}

// Completed returns the number of items downloaded successfully so far.
func (d *Downloader) Completed() int64 {
	return d.completed.Load()
}

// Total returns the number of items handed to DownloadBatch so far.
func (d *Downloader) Total() int64 {
	return d.total.Load()
}

// SaveFailedDownloads writes a timestamped tab-separated list of failed
// items under the output directory and returns its path. Best effort: a
// write failure is logged and returned, never fatal to the caller. With
// nothing failed it returns an empty path.
func (d *Downloader) SaveFailedDownloads() (string, error) {
	failed := d.FailedDownloads()
	if len(failed) == 0 {
		return "", nil
	}

	if err := persist.EnsureDir(d.outputDir); err != nil {
		d.log.WithError(err).Warn("Could not create output directory for failed downloads list")
		return "", err
	}

	path := filepath.Join(d.outputDir, fmt.Sprintf("failed_downloads_%s.txt", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		d.log.WithError(err).Warn("Could not write failed downloads list")
		return "", fmt.Errorf("%w: creating %q: %v", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	for _, item := range failed {
		if _, err := fmt.Fprintf(f, "%s\t%s\n", item.URL, item.Dest); err != nil {
			d.log.WithError(err).Warn("Could not write failed downloads list")
			return "", fmt.Errorf("%w: writing %q: %v", utils.ErrFilesystem, path, err)
		}
	}

	d.log.WithFields(logrus.Fields{"path": path, "count": len(failed)}).Info("Saved failed downloads list")
	return path, nil
}
