// Package persist handles filesystem output: chunked content streaming,
// JSON documents, and the metadata store.
package persist

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: creating directory %q: %v", utils.ErrFilesystem, dir, err)
	}
	return nil
}

// WriteChunks streams r to path in chunks of chunkSize bytes, creating
// parent directories as needed. chunkSize below 1 defaults to 8192.
func WriteChunks(path string, r io.Reader, chunkSize int) (int64, error) {
	if chunkSize < 1 {
		chunkSize = 8192
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("%w: creating %q: %v", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	var written int64
	buf := make([]byte, chunkSize)
	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return written, fmt.Errorf("%w: writing %q: %v", utils.ErrFilesystem, path, writeErr)
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: reading content for %q: %v", utils.ErrFilesystem, path, readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return written, fmt.Errorf("%w: syncing %q: %v", utils.ErrFilesystem, path, err)
	}
	return written, nil
}

// WriteJSON marshals v with indentation and writes it to path, creating
// parent directories as needed.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshalling for %q: %v", utils.ErrFilesystem, path, err)
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %q: %v", utils.ErrFilesystem, path, err)
	}
	return nil
}

// AppendLine appends a single line to path, creating the file if absent.
func AppendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: opening %q: %v", utils.ErrFilesystem, path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("%w: appending to %q: %v", utils.ErrFilesystem, path, err)
	}
	return nil
}

// ReadLines returns the non-empty lines of path.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %q: %v", utils.ErrFilesystem, path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %q: %v", utils.ErrFilesystem, path, err)
	}
	return lines, nil
}
