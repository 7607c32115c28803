package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Metadata is one extracted record, keyed by an "id" field when present.
type Metadata map[string]interface{}

// MetadataManager stores metadata records as individual JSON files under
// a directory and keeps an in-memory cache with a per-field lookup index.
type MetadataManager struct {
	dir string

	mu      sync.RWMutex
	cache   map[string]Metadata            // filename stem -> record
	byField map[string]map[string][]string // field -> value -> filename stems

	log *logrus.Entry
}

// NewMetadataManager creates a manager rooted at dir. The directory is
// created if missing.
func NewMetadataManager(dir string, log *logrus.Entry) (*MetadataManager, error) {
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	return &MetadataManager{
		dir:     dir,
		cache:   make(map[string]Metadata),
		byField: make(map[string]map[string][]string),
		log:     log,
	}, nil
}

// LoadAll reads every .json file under the directory into the cache,
// rebuilding field indexes. Malformed files are logged and skipped.
func (m *MetadataManager) LoadAll() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("%w: listing %q: %v", utils.ErrFilesystem, m.dir, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]Metadata)
	m.byField = make(map[string]map[string][]string)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(m.dir, name))
		if readErr != nil {
			m.log.WithError(readErr).WithField("file", name).Warn("Skipping unreadable metadata file")
			continue
		}
		var record Metadata
		if jsonErr := json.Unmarshal(data, &record); jsonErr != nil {
			m.log.WithError(jsonErr).WithField("file", name).Warn("Skipping malformed metadata file")
			continue
		}
		stem := strings.TrimSuffix(name, ".json")
		m.cache[stem] = record
		m.indexLocked(stem, record)
	}

	m.log.WithField("records", len(m.cache)).Debug("Metadata cache loaded")
	return nil
}

// Save writes a record to <id>.json and updates the cache and indexes.
func (m *MetadataManager) Save(id string, record Metadata) error {
	stem := utils.SanitizeFilename(id)
	if stem == "" {
		return fmt.Errorf("%w: empty metadata id", utils.ErrFilesystem)
	}
	if err := WriteJSON(filepath.Join(m.dir, stem+".json"), record); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[stem] = record
	m.indexLocked(stem, record)
	return nil
}

// FindByID returns the cached record for id, if any.
func (m *MetadataManager) FindByID(id string) (Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.cache[utils.SanitizeFilename(id)]
	return record, ok
}

// FindByField returns every cached record whose field equals value.
// Lookups hit the index built at load/save time.
func (m *MetadataManager) FindByField(field, value string) []Metadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stems := m.byField[field][value]
	out := make([]Metadata, 0, len(stems))
	for _, stem := range stems {
		if record, ok := m.cache[stem]; ok {
			out = append(out, record)
		}
	}
	return out
}

// Count returns the number of cached records.
func (m *MetadataManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.cache)
}

func (m *MetadataManager) indexLocked(stem string, record Metadata) {
	for field, raw := range record {
		value, ok := raw.(string)
		if !ok {
			continue
		}
		if m.byField[field] == nil {
			m.byField[field] = make(map[string][]string)
		}
		stems := m.byField[field][value]
		found := false
		for _, s := range stems {
			if s == stem {
				found = true
				break
			}
		}
		if !found {
			m.byField[field][value] = append(stems, stem)
		}
	}
}
