// Package models defines the shared record types persisted by the state
// store and exchanged between the crawl and download layers.
package models

import "time"

// FetchStatus is the lifecycle state of a URL in the state store.
type FetchStatus string

const (
	FetchStatusPending  FetchStatus = "pending"
	FetchStatusSuccess  FetchStatus = "success"
	FetchStatusFailure  FetchStatus = "failure"
	FetchStatusNotFound FetchStatus = "not_found" // No record exists for the URL
	FetchStatusDBError  FetchStatus = "db_error"
)

// FetchRecord is the stored outcome of one page fetch.
type FetchRecord struct {
	Status      FetchStatus `json:"status"`
	LastError   string      `json:"last_error,omitempty"`
	Attempts    int         `json:"attempts,omitempty"`
	FetchedAt   time.Time   `json:"fetched_at,omitempty"`
	ContentSize int64       `json:"content_size,omitempty"`
}

// DownloadRecord is the stored outcome of one file download.
type DownloadRecord struct {
	Status       FetchStatus `json:"status"`
	Dest         string      `json:"dest,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
	BytesWritten int64       `json:"bytes_written,omitempty"`
	DownloadedAt time.Time   `json:"downloaded_at,omitempty"`
}

// WorkItem is one unit of crawl work, carried through queues and resume
// scans.
type WorkItem struct {
	URL   string
	Depth int
}
