package obs

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hookedLogger returns an entry whose output is captured by a test hook
func hookedLogger() (*logrus.Entry, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return logrus.NewEntry(logger), hook
}

func TestProgressTracker_LogsAtCadence(t *testing.T) {
	entry, hook := hookedLogger()
	p := NewProgressTracker(entry, 10, 5)

	for i := 0; i < 10; i++ {
		p.Update(1, "")
	}

	// Cadence hits at 5 and 10; 10 also matches completion
	var progressLines []string
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "Progress:") {
			progressLines = append(progressLines, e.Message)
		}
	}
	require.Len(t, progressLines, 2)
	assert.Contains(t, progressLines[0], "5/10 (50.0%)")
	assert.Contains(t, progressLines[1], "10/10 (100.0%)")
	assert.Equal(t, 10, p.Current())
}

func TestProgressTracker_ZeroIncrementForcesLog(t *testing.T) {
	entry, hook := hookedLogger()
	p := NewProgressTracker(entry, 100, 50)

	p.Update(1, "")
	hook.Reset()
	p.Update(0, "checkpoint")

	entries := hook.AllEntries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "1/100")
	assert.Contains(t, entries[0].Message, "checkpoint")
}

func TestProgressTracker_NegativeIncrementIgnored(t *testing.T) {
	entry, hook := hookedLogger()
	p := NewProgressTracker(entry, 10, 1)

	p.Update(3, "")
	hook.Reset()
	p.Update(-2, "")

	assert.Equal(t, 3, p.Current())
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
}

func TestProgressTracker_ClampsZeroFrequency(t *testing.T) {
	entry, hook := hookedLogger()
	p := NewProgressTracker(entry, 3, 0)

	p.Update(1, "")
	assert.NotEmpty(t, hook.AllEntries())
}
