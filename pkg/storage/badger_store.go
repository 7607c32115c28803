package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/log"
	"github.com/Sriram-PR/webfetch/pkg/models"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

const (
	fetchKeyPrefix    = "page:" // Page fetch state keys
	downloadKeyPrefix = "dl:"   // File download state keys
	stateDBDir        = "state_db"
)

// BadgerStore implements StateStore on BadgerDB.
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	keyCount atomic.Int64 // Cached so Count is O(1)
}

// NewBadgerStore opens (or creates) the state database for one site
// under stateDir. With resume false any existing state is removed first.
func NewBadgerStore(stateDir, siteDomain string, resume bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{log: logger}

	dbPath := filepath.Join(stateDir, utils.SanitizeFilename(siteDomain)+"_"+stateDBDir)

	if !resume {
		logger.Warnf("Resume flag is false. REMOVING existing state directory: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			logger.Errorf("Failed to remove existing state directory %s: %v", dbPath, err)
		}
	}

	logger.Infof("Initializing state database at: %s (Resume: %v)", dbPath, resume)

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(log.NewBadgerLogrusAdapter(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1)

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	if resume {
		count, countErr := store.countKeys()
		if countErr != nil {
			logger.Warnf("Failed to count existing keys on resume: %v", countErr)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded existing key count on resume: %d", count)
		}
	}

	return store, nil
}

// countKeys does a full key scan, used only once during resume init.
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate retries badger.ErrConflict, which concurrent MVCC writes on
// overlapping keys return and which resolves in microseconds.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrDatabase, maxConflictRetries)
}

// MarkURLSeen implements FetchStore.
func (s *BadgerStore) MarkURLSeen(normalizedURL string) (bool, error) {
	if s.db == nil {
		return false, errors.New("state store not initialized")
	}
	added := false
	key := []byte(fetchKeyPrefix + normalizedURL)

	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			// Claim with an empty value; a real record follows later
			errSet := txn.SetEntry(badger.NewEntry(key, []byte{}))
			if errSet == nil {
				added = true
			}
			return errSet
		}
		return errGet
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB update error in MarkURLSeen: %v", err)
		return false, fmt.Errorf("%w: marking key '%s': %w", utils.ErrDatabase, string(key), err)
	}
	if added {
		s.keyCount.Add(1)
	}
	return added, nil
}

// CheckFetch implements FetchStore.
func (s *BadgerStore) CheckFetch(normalizedURL string) (models.FetchStatus, *models.FetchRecord, error) {
	status := models.FetchStatusNotFound
	var record *models.FetchRecord
	key := []byte(fetchKeyPrefix + normalizedURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				status = models.FetchStatusPending // Claimed but no outcome written yet
				return nil
			}
			var decoded models.FetchRecord
			if jsonErr := json.Unmarshal(val, &decoded); jsonErr != nil {
				s.log.Warnf("Failed to unmarshal fetch record for key '%s': %v. Treating as 'pending'.", string(key), jsonErr)
				status = models.FetchStatusPending
				return nil
			}
			record = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB view error in CheckFetch for key '%s': %v", string(key), errView)
		return models.FetchStatusDBError, nil, errView
	}
	return status, record, nil
}

// UpdateFetch implements FetchStore.
func (s *BadgerStore) UpdateFetch(normalizedURL string, record *models.FetchRecord) error {
	return s.putRecord(fetchKeyPrefix+normalizedURL, record)
}

// CheckDownload implements DownloadStore.
func (s *BadgerStore) CheckDownload(normalizedURL string) (models.FetchStatus, *models.DownloadRecord, error) {
	status := models.FetchStatusNotFound
	var record *models.DownloadRecord
	key := []byte(downloadKeyPrefix + normalizedURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: getting key '%s': %w", utils.ErrDatabase, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				s.log.Warnf("Download key '%s' found with empty value, invalid state. Treating as 'not_found'.", string(key))
				return nil
			}
			var decoded models.DownloadRecord
			if jsonErr := json.Unmarshal(val, &decoded); jsonErr != nil {
				s.log.Warnf("Failed to unmarshal download record for key '%s': %v. Treating as 'not_found'.", string(key), jsonErr)
				return nil
			}
			record = &decoded
			status = decoded.Status
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB view error in CheckDownload for key '%s': %v", string(key), errView)
		return models.FetchStatusDBError, nil, errView
	}
	return status, record, nil
}

// UpdateDownload implements DownloadStore.
func (s *BadgerStore) UpdateDownload(normalizedURL string, record *models.DownloadRecord) error {
	return s.putRecord(downloadKeyPrefix+normalizedURL, record)
}

func (s *BadgerStore) putRecord(fullKey string, record interface{}) error {
	if s.db == nil {
		return errors.New("state store not initialized")
	}
	key := []byte(fullKey)

	recordBytes, jsonErr := json.Marshal(record)
	if jsonErr != nil {
		wrapped := fmt.Errorf("%w: marshalling record for key '%s': %w", utils.ErrParsing, fullKey, jsonErr)
		s.log.Error(wrapped)
		return wrapped
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		return txn.SetEntry(badger.NewEntry(key, recordBytes))
	})

	if err != nil {
		s.log.WithField("key", fullKey).Errorf("DB update error writing record: %v", err)
		return fmt.Errorf("%w: setting key '%s': %w", utils.ErrDatabase, fullKey, err)
	}
	if isNew {
		s.keyCount.Add(1)
	}
	return nil
}

// Count implements StoreAdmin using the cached counter.
func (s *BadgerStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// RequeueIncomplete implements StoreAdmin: scans page keys and sends
// pending or failed URLs to workChan.
func (s *BadgerStore) RequeueIncomplete(ctx context.Context, workChan chan<- models.WorkItem) (int, int, error) {
	s.log.Info("Resume mode: scanning database for incomplete tasks to requeue...")
	requeued := 0
	scanErrors := 0
	start := time.Now()

	scanErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(fetchKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			select {
			case <-ctx.Done():
				s.log.Warnf("Resume scan interrupted by context cancellation: %v", ctx.Err())
				return ctx.Err()
			default:
			}

			item := it.Item()
			urlToRequeue := string(item.KeyCopy(nil)[len(prefix):])

			incomplete := false
			errVal := item.Value(func(val []byte) error {
				if len(val) == 0 {
					incomplete = true // Claimed but never finished
					return nil
				}
				var record models.FetchRecord
				if jsonErr := json.Unmarshal(val, &record); jsonErr != nil {
					incomplete = true
					return nil
				}
				incomplete = record.Status == models.FetchStatusPending || record.Status == models.FetchStatusFailure
				return nil
			})
			if errVal != nil {
				s.log.Warnf("Resume scan: failed reading value for '%s': %v", urlToRequeue, errVal)
				scanErrors++
				continue
			}
			if !incomplete {
				continue
			}

			select {
			case workChan <- models.WorkItem{URL: urlToRequeue}:
				requeued++
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	s.log.Infof("Resume scan finished in %v: requeued %d, scan errors %d", time.Since(start), requeued, scanErrors)
	return requeued, scanErrors, scanErr
}

// RunGC runs BadgerDB's value log garbage collection periodically.
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Info("DB GC: database is nil or closed, skipping GC cycle.")
				continue
			}

			var err error
			// Loop until ErrNoRewrite or a real error
			for {
				err = s.db.RunValueLogGC(0.5)
				if err != nil {
					break
				}
			}
			if errors.Is(err, badger.ErrNoRewrite) {
				s.log.Debug("BadgerDB GC finished (no rewrite needed).")
			} else {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Infof("Stopping BadgerDB GC goroutine: %v", ctx.Err())
			return
		}
	}
}

// Close implements StoreAdmin.
func (s *BadgerStore) Close() error {
	if s.db == nil || s.db.IsClosed() {
		return nil
	}
	s.log.Info("Closing state database...")
	return s.db.Close()
}
