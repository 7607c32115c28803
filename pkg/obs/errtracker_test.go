package obs

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestErrorTracker_RecordAndSummary(t *testing.T) {
	tracker := NewErrorTracker(testLogger())

	tracker.Record("http_error", "status 500", map[string]interface{}{"url": "https://example.com/a", "attempt": 1})
	tracker.Record("http_error", "status 502", map[string]interface{}{"url": "https://example.com/b", "attempt": 2})
	tracker.Record("network_error", "connection refused", nil)

	assert.Equal(t, 2, tracker.Count("http_error"))
	assert.Equal(t, 1, tracker.Count("network_error"))
	assert.Equal(t, 0, tracker.Count("unexpected_error"))

	summary := tracker.Summary()
	assert.Equal(t, 3, summary.TotalErrors)
	assert.Equal(t, 2, summary.ByKind["http_error"])
	assert.Len(t, summary.ErrorLog["http_error"], 2)
	assert.Equal(t, "status 500", summary.ErrorLog["http_error"][0].Message)
	assert.Equal(t, 1, summary.ErrorLog["http_error"][0].Details["attempt"])
}

func TestErrorTracker_RecordErr(t *testing.T) {
	tracker := NewErrorTracker(testLogger())
	tracker.RecordErr("download_error", errors.New("disk full"), map[string]interface{}{"dest": "/tmp/x"})

	records := tracker.Summary().ErrorLog["download_error"]
	assert.Len(t, records, 1)
	assert.Equal(t, "disk full", records[0].Message)
}

func TestErrorTracker_ConcurrentRecording(t *testing.T) {
	tracker := NewErrorTracker(testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Record("network_error", "timeout", nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, tracker.Count("network_error"))
	assert.Equal(t, 100, tracker.Summary().TotalErrors)
}
