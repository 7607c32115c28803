package download

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/fetch"
	"github.com/Sriram-PR/webfetch/pkg/obs"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testDownloader(t *testing.T, outputDir string) *Downloader {
	t.Helper()
	client := &http.Client{Timeout: 30 * time.Second}
	policy := fetch.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}
	return NewDownloader(client, obs.NewErrorTracker(testLogger()), "webfetch-test/1.0", 4, 512, policy, outputDir, testLogger())
}

func fileServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.bin":
			w.Write(bytes.Repeat([]byte("data"), 300)) // larger than one chunk
		case "/missing.bin":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDownloadBatch_OutcomesAlignWithInput(t *testing.T) {
	server := fileServer(t)
	dir := t.TempDir()
	d := testDownloader(t, dir)

	items := []Item{
		{URL: server.URL + "/ok.bin", Dest: filepath.Join(dir, "ok.bin")},
		{URL: server.URL + "/missing.bin", Dest: filepath.Join(dir, "missing.bin")},
	}
	results := d.DownloadBatch(context.Background(), items)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0] || results[1] {
		t.Errorf("results = %v, want [true false]", results)
	}

	data, err := os.ReadFile(items[0].Dest)
	if err != nil {
		t.Fatalf("reading downloaded file: %v", err)
	}
	if len(data) != 1200 {
		t.Errorf("downloaded %d bytes, want 1200", len(data))
	}

	failed := d.FailedDownloads()
	if len(failed) != 1 || failed[0].URL != items[1].URL || failed[0].Dest != items[1].Dest {
		t.Errorf("FailedDownloads = %v, want the missing.bin pair", failed)
	}

	if got := d.Completed(); got != 1 {
		t.Errorf("Completed = %d, want 1", got)
	}
	if got := d.Total(); got != 2 {
		t.Errorf("Total = %d, want 2", got)
	}
}

func TestDownloadBatch_404DoesNotRetry(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	d := testDownloader(t, dir)
	d.DownloadBatch(context.Background(), []Item{{URL: server.URL + "/x", Dest: filepath.Join(dir, "x")}})

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on 404)", attempts)
	}
}

func TestDownloadBatch_RetriesServerErrors(t *testing.T) {
	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("eventually"))
	}))
	t.Cleanup(server.Close)

	dir := t.TempDir()
	d := testDownloader(t, dir)
	dest := filepath.Join(dir, "retry.bin")
	results := d.DownloadBatch(context.Background(), []Item{{URL: server.URL + "/retry", Dest: dest}})

	if !results[0] {
		t.Fatal("download failed despite eventual success")
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "eventually" {
		t.Errorf("file content = %q, want %q", data, "eventually")
	}
}

func TestDownloadBatch_EmptyInput(t *testing.T) {
	d := testDownloader(t, t.TempDir())
	if results := d.DownloadBatch(context.Background(), nil); len(results) != 0 {
		t.Errorf("results for empty input = %v, want empty", results)
	}
}

func TestSaveFailedDownloads(t *testing.T) {
	server := fileServer(t)
	dir := t.TempDir()
	d := testDownloader(t, dir)

	items := []Item{{URL: server.URL + "/missing.bin", Dest: filepath.Join(dir, "missing.bin")}}
	d.DownloadBatch(context.Background(), items)

	path, err := d.SaveFailedDownloads()
	if err != nil {
		t.Fatalf("SaveFailedDownloads: %v", err)
	}
	if path == "" {
		t.Fatal("SaveFailedDownloads returned empty path with failures present")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading failed downloads list: %v", err)
	}
	line := strings.TrimSpace(string(data))
	want := items[0].URL + "\t" + items[0].Dest
	if line != want {
		t.Errorf("list line = %q, want %q", line, want)
	}
}

func TestSaveFailedDownloads_NothingFailed(t *testing.T) {
	d := testDownloader(t, t.TempDir())
	path, err := d.SaveFailedDownloads()
	if err != nil {
		t.Fatalf("SaveFailedDownloads: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty when nothing failed", path)
	}
}
