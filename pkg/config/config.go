package config

import "time"

// AppConfig holds the global application configuration
type AppConfig struct {
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent,omitempty"`

	// Throttling
	RequestsPerSecond  float64       `yaml:"requests_per_second,omitempty"`  // Global request rate (0 = unlimited)
	RateLimitTimeout   time.Duration `yaml:"rate_limit_timeout,omitempty"`   // Max time a caller may be parked behind the limiter
	ConcurrentLimit    int           `yaml:"concurrent_limit,omitempty"`     // Max in-flight page fetches
	DownloadLimit      int           `yaml:"download_limit,omitempty"`       // Max in-flight file downloads
	GateAcquireTimeout time.Duration `yaml:"gate_acquire_timeout,omitempty"` // Max wait for a concurrency slot

	// Fetch behaviour
	RequestTimeout   time.Duration `yaml:"request_timeout,omitempty"` // Per-request timeout on the shared client
	MaxRetries       int           `yaml:"max_retries,omitempty"`     // Attempts per resource
	BaseRetryDelay   time.Duration `yaml:"base_retry_delay,omitempty"`
	MaxPageSizeBytes int64         `yaml:"max_page_size_bytes,omitempty"`
	MaxDepth         int           `yaml:"max_depth,omitempty"` // Link-following depth limit (0 = unlimited)
	RespectRobots    bool          `yaml:"respect_robots,omitempty"`

	// Batch processing
	BatchSize  int           `yaml:"batch_size,omitempty"`
	BatchDelay time.Duration `yaml:"batch_delay,omitempty"` // Pacing sleep between batches

	// Downloads
	ChunkSize int    `yaml:"chunk_size,omitempty"` // Streaming write chunk size in bytes
	OutputDir string `yaml:"output_dir,omitempty"`

	// State
	StateDir         string `yaml:"state_dir,omitempty"`
	EnableStateStore bool   `yaml:"enable_state_store,omitempty"` // Persist per-URL outcomes to BadgerDB

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // Explicitly enable/disable HTTP/2 attempt (use pointer for tri-state: nil=default, true=force, false=disable)
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// MinInterval returns the minimum spacing between rate-limited requests.
func (c *AppConfig) MinInterval() time.Duration {
	if c.RequestsPerSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.RequestsPerSecond)
}
