package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sriram-PR/webfetch/pkg/obs"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// fastPolicy keeps retry sleeps out of test wall time as far as possible
func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond}
}

func testFetcher(tracker *obs.ErrorTracker) *Fetcher {
	client := &http.Client{Timeout: 30 * time.Second}
	return NewFetcher(client, NewGate(5, testLogger()), nil, tracker, "webfetch-test/1.0", 1<<20, testLogger())
}

// mockServer returns status codes in sequence, repeating the last one.
// The atomic counter tracks how many requests arrived.
func mockServer(t *testing.T, statusCodes []int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	attempts := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idx := int(attempts.Add(1)) - 1
		if idx >= len(statusCodes) {
			idx = len(statusCodes) - 1
		}
		w.WriteHeader(statusCodes[idx])
		if statusCodes[idx] == http.StatusOK {
			w.Write([]byte(body))
		}
	}))
	t.Cleanup(server.Close)
	return server, attempts
}

func TestFetchPage_Success(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusOK}, "hello world")

	body, err := testFetcher(nil).FetchPage(context.Background(), server.URL, fastPolicy(3))
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(body) != "hello world" {
		t.Errorf("body = %q, want %q", body, "hello world")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1", got)
	}
}

func TestFetchPage_RecoversAfterServerError(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusInternalServerError, http.StatusOK}, "recovered")

	body, err := testFetcher(nil).FetchPage(context.Background(), server.URL, fastPolicy(3))
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q, want %q", body, "recovered")
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestFetchPage_ExhaustsRetriesExactly(t *testing.T) {
	tracker := obs.NewErrorTracker(testLogger())
	server, attempts := mockServer(t, []int{http.StatusInternalServerError}, "")

	body, err := testFetcher(tracker).FetchPage(context.Background(), server.URL, fastPolicy(3))
	if body != nil {
		t.Errorf("body = %q, want nil", body)
	}
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Fatalf("error = %v, want ErrRetryFailed", err)
	}
	if !errors.Is(err, utils.ErrServerHTTPError) {
		t.Errorf("error = %v, want wrapped ErrServerHTTPError", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want exactly 3", got)
	}
	if got := tracker.Count(utils.KindHTTPError); got != 3 {
		t.Errorf("tracked http_error count = %d, want 3", got)
	}
}

func TestFetchPage_404AbortsImmediately(t *testing.T) {
	tracker := obs.NewErrorTracker(testLogger())
	server, attempts := mockServer(t, []int{http.StatusNotFound}, "")

	_, err := testFetcher(tracker).FetchPage(context.Background(), server.URL, fastPolicy(5))
	if !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if errors.Is(err, utils.ErrRetryFailed) {
		t.Error("404 should abort, not exhaust retries")
	}
	if got := attempts.Load(); got != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 404)", got)
	}
	if got := tracker.Count(utils.KindHTTPError); got != 1 {
		t.Errorf("tracked http_error count = %d, want 1", got)
	}
}

func TestFetchPage_NetworkErrorTrackedAndRetried(t *testing.T) {
	tracker := obs.NewErrorTracker(testLogger())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	_, err := testFetcher(tracker).FetchPage(context.Background(), server.URL, fastPolicy(2))
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Fatalf("error = %v, want ErrRetryFailed", err)
	}
	if got := tracker.Count(utils.KindNetworkError); got != 2 {
		t.Errorf("tracked network_error count = %d, want 2", got)
	}
}

func TestFetchPage_RejectsOversizedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	t.Cleanup(server.Close)

	client := &http.Client{Timeout: 30 * time.Second}
	fetcher := NewFetcher(client, NewGate(1, testLogger()), nil, nil, "", 1024, testLogger())

	_, err := fetcher.FetchPage(context.Background(), server.URL, fastPolicy(1))
	if !errors.Is(err, utils.ErrRetryFailed) {
		t.Fatalf("error = %v, want ErrRetryFailed wrapping size violation", err)
	}
}

func TestFetchPage_PreCancelledContext(t *testing.T) {
	server, attempts := mockServer(t, []int{http.StatusOK}, "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testFetcher(nil).FetchPage(ctx, server.URL, fastPolicy(3))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if got := attempts.Load(); got != 0 {
		t.Errorf("attempts = %d, want 0", got)
	}
}
