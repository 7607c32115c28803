package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/webfetch/pkg/models"
)

// FetchStore tracks page fetch state.
type FetchStore interface {
	// MarkURLSeen records a URL as claimed (pending) and reports whether
	// it was newly added.
	MarkURLSeen(normalizedURL string) (bool, error)

	// CheckFetch returns the stored state of a URL. A missing key yields
	// FetchStatusNotFound with a nil record and nil error.
	CheckFetch(normalizedURL string) (models.FetchStatus, *models.FetchRecord, error)

	// UpdateFetch stores the outcome of a fetch.
	UpdateFetch(normalizedURL string, record *models.FetchRecord) error
}

// DownloadStore tracks file download state.
type DownloadStore interface {
	CheckDownload(normalizedURL string) (models.FetchStatus, *models.DownloadRecord, error)
	UpdateDownload(normalizedURL string, record *models.DownloadRecord) error
}

// StoreAdmin handles lifecycle and resume operations.
type StoreAdmin interface {
	// Count returns the number of keys in the store.
	Count() (int, error)

	// RequeueIncomplete scans for pending or failed page URLs and sends
	// them to workChan. Intended for resume only.
	RequeueIncomplete(ctx context.Context, workChan chan<- models.WorkItem) (requeued int, scanErrors int, err error)

	// RunGC runs value log garbage collection until ctx is cancelled.
	// Should be run in a goroutine.
	RunGC(ctx context.Context, interval time.Duration)

	Close() error
}

// StateStore combines all store interfaces.
type StateStore interface {
	FetchStore
	DownloadStore
	StoreAdmin
}
