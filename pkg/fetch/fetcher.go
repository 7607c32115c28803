package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/obs"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// RetryPolicy controls the retry loop of a fetch.
type RetryPolicy struct {
	MaxRetries int           // Total attempts (not additional retries)
	BaseDelay  time.Duration // Base component of the linear backoff
}

// Backoff returns the sleep before the next attempt following `attempt`
// (zero-based): base + (attempt+1) seconds. Linear, not exponential.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return p.BaseDelay + time.Duration(attempt+1)*time.Second
}

// Fetcher retrieves page content over a shared HTTP client, bounded by a
// concurrency gate and an optional rate limiter. Each attempt holds a gate
// slot only for its own duration; the slot is released whether the attempt
// succeeds or fails.
type Fetcher struct {
	client       *http.Client
	gate         *Gate
	limiter      *RateLimiter
	tracker      *obs.ErrorTracker
	userAgent    string
	maxBodyBytes int64
	log          *logrus.Entry
}

// NewFetcher creates a Fetcher. limiter and tracker may be nil, in which
// case requests are unthrottled and failures are only logged.
func NewFetcher(client *http.Client, gate *Gate, limiter *RateLimiter, tracker *obs.ErrorTracker, userAgent string, maxBodyBytes int64, log *logrus.Entry) *Fetcher {
	if maxBodyBytes <= 0 {
		maxBodyBytes = 10 << 20
	}
	return &Fetcher{
		client:       client,
		gate:         gate,
		limiter:      limiter,
		tracker:      tracker,
		userAgent:    userAgent,
		maxBodyBytes: maxBodyBytes,
		log:          log,
	}
}

// FetchPage retrieves the body of rawURL, retrying transient failures per
// the policy. Returns the body on HTTP 200. A 404 aborts remaining retries
// immediately and returns ErrNotFound. All other statuses and transport
// errors are recorded with their attempt number and retried with linear
// backoff; exhausting the policy returns nil content wrapped in
// ErrRetryFailed. Callers must treat nil content as a failed fetch.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL string, policy RetryPolicy) ([]byte, error) {
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 3
	}
	reqLog := f.log.WithField("url", rawURL)

	var lastErr error
	for attempt := 0; attempt < policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) after error: %w", err, lastErr)
			}
			return nil, err
		}

		body, abort, err := f.attempt(ctx, rawURL, attempt, reqLog)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if abort {
			return nil, err
		}

		// Linear backoff between attempts, skipped after the last one
		if attempt < policy.MaxRetries-1 {
			delay := policy.Backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt + 1, "max_retries": policy.MaxRetries, "delay": delay}).Warn("Retrying fetch...")
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			timer.Stop()
		}
	}

	reqLog.Errorf("All %d fetch attempts failed. Last error: %v", policy.MaxRetries, lastErr)
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}

// attempt performs one gate-bounded request. abort=true means the retry
// loop must stop now (404, rate-limit timeout, context cancellation).
func (f *Fetcher) attempt(ctx context.Context, rawURL string, attempt int, reqLog *logrus.Entry) (body []byte, abort bool, err error) {
	if err := f.gate.Enter(ctx); err != nil {
		return nil, true, err
	}
	defer f.gate.Leave()

	if f.limiter != nil {
		if err := f.limiter.Acquire(ctx); err != nil {
			// RateLimitTimeout surfaces to the caller rather than burning
			// the remaining attempts against a saturated limiter.
			return nil, true, err
		}
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if reqErr != nil {
		err = fmt.Errorf("%w: %q: %v", utils.ErrRequestCreation, rawURL, reqErr)
		f.record(utils.KindUnexpectedError, err, rawURL, attempt)
		return nil, true, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		if errors.Is(doErr, context.Canceled) || errors.Is(doErr, context.DeadlineExceeded) {
			return nil, true, doErr
		}
		f.record(utils.ClassifyAttempt(doErr), doErr, rawURL, attempt)
		return nil, false, doErr
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, readErr := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
		if readErr != nil {
			err = fmt.Errorf("%w: reading body from %q: %v", utils.ErrResponseBodyRead, rawURL, readErr)
			f.record(utils.KindNetworkError, err, rawURL, attempt)
			return nil, false, err
		}
		if int64(len(data)) > f.maxBodyBytes {
			err = fmt.Errorf("%w: page %q exceeds max size (%d bytes)", utils.ErrResponseBodyRead, rawURL, f.maxBodyBytes)
			f.record(utils.KindUnexpectedError, err, rawURL, attempt)
			return nil, false, err
		}
		reqLog.WithField("attempt", attempt+1).Debug("Successfully fetched")
		return data, false, nil

	case resp.StatusCode == http.StatusNotFound:
		err = fmt.Errorf("%w: status %d for %q", utils.ErrNotFound, resp.StatusCode, rawURL)
		f.record(utils.KindHTTPError, err, rawURL, attempt)
		// 404 is definitive, never retried
		return nil, true, err

	case resp.StatusCode >= 500:
		err = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, resp.StatusCode, resp.Status)

	case resp.StatusCode >= 400:
		err = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, resp.StatusCode, resp.Status)

	default:
		err = fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, resp.StatusCode, resp.Status)
	}

	f.record(utils.KindHTTPError, err, rawURL, attempt)
	return nil, false, err
}

func (f *Fetcher) record(kind string, err error, rawURL string, attempt int) {
	if f.tracker == nil {
		return
	}
	f.tracker.RecordErr(kind, err, map[string]interface{}{
		"url":     rawURL,
		"attempt": attempt + 1,
	})
}
