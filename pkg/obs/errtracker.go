package obs

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorRecord is a single tracked failure.
type ErrorRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ErrorSummary aggregates everything a tracker has seen.
type ErrorSummary struct {
	TotalErrors int                      `json:"total_errors"`
	ByKind      map[string]int           `json:"by_type"`
	ErrorLog    map[string][]ErrorRecord `json:"error_log"`
}

// ErrorTracker records typed failures during a fetch or download run.
// Trackers are constructed explicitly and passed to the components that
// need them; there is no process-wide registry.
type ErrorTracker struct {
	log    *logrus.Entry
	mu     sync.Mutex
	errors map[string][]ErrorRecord
	counts map[string]int
}

// NewErrorTracker creates a tracker that mirrors records to the given logger.
func NewErrorTracker(log *logrus.Entry) *ErrorTracker {
	return &ErrorTracker{
		log:    log,
		errors: make(map[string][]ErrorRecord),
		counts: make(map[string]int),
	}
}

// Record logs and stores one failure under the given kind.
func (t *ErrorTracker) Record(kind, message string, details map[string]interface{}) {
	t.mu.Lock()
	t.errors[kind] = append(t.errors[kind], ErrorRecord{
		Timestamp: time.Now(),
		Message:   message,
		Details:   details,
	})
	t.counts[kind]++
	t.mu.Unlock()

	entry := t.log.WithField("kind", kind)
	if details != nil {
		entry = entry.WithFields(logrus.Fields(details))
	}
	entry.Error(message)
}

// RecordErr records an error value under the given kind.
func (t *ErrorTracker) RecordErr(kind string, err error, details map[string]interface{}) {
	if err == nil {
		return
	}
	t.Record(kind, err.Error(), details)
}

// Count returns the number of records for one kind.
func (t *ErrorTracker) Count(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

// Summary returns a copy of everything recorded so far.
func (t *ErrorTracker) Summary() ErrorSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := ErrorSummary{
		ByKind:   make(map[string]int, len(t.counts)),
		ErrorLog: make(map[string][]ErrorRecord, len(t.errors)),
	}
	for kind, n := range t.counts {
		s.ByKind[kind] = n
		s.TotalErrors += n
	}
	for kind, recs := range t.errors {
		s.ErrorLog[kind] = append([]ErrorRecord(nil), recs...)
	}
	return s
}
