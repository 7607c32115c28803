package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.bin")
	payload := bytes.Repeat([]byte("chunked"), 1000)

	written, err := WriteChunks(path, bytes.NewReader(payload), 64)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), written)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestWriteChunks_EmptyReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")

	written, err := WriteChunks(path, strings.NewReader(""), 64)
	require.NoError(t, err)
	assert.Equal(t, int64(0), written)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestWriteChunks_DefaultsChunkSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.bin")
	_, err := WriteChunks(path, strings.NewReader("content"), 0)
	require.NoError(t, err)
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta", "record.json")

	err := WriteJSON(path, map[string]string{"url": "https://example.com"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"url": "https://example.com"`)
}

func TestAppendLineAndReadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.txt")

	require.NoError(t, AppendLine(path, "first"))
	require.NoError(t, AppendLine(path, "second"))

	lines, err := ReadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, lines)
}

func TestReadLines_MissingFile(t *testing.T) {
	_, err := ReadLines(filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}
