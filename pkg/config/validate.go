package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// BaseURL is the only field with no usable default
	if c.BaseURL == "" {
		return warnings, fmt.Errorf("%w: base_url is required", utils.ErrConfigValidation)
	}
	parsed, parseErr := url.ParseRequestURI(c.BaseURL)
	if parseErr != nil {
		return warnings, fmt.Errorf("%w: base_url %q: %v", utils.ErrConfigValidation, c.BaseURL, parseErr)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return warnings, fmt.Errorf("%w: base_url must use http or https, got %q", utils.ErrConfigValidation, parsed.Scheme)
	}

	if c.UserAgent == "" {
		c.UserAgent = "webfetch/1.0"
	}

	// RequestsPerSecond: 0 disables the limiter; negative is invalid
	if c.RequestsPerSecond < 0 {
		warnings = append(warnings, "requests_per_second cannot be negative, defaulting to 1")
		c.RequestsPerSecond = 1
	}

	// RateLimitTimeout
	if c.RateLimitTimeout <= 0 {
		c.RateLimitTimeout = 60 * time.Second
	}

	// ConcurrentLimit
	if c.ConcurrentLimit <= 0 {
		warnings = append(warnings, "concurrent_limit should be > 0, defaulting to 10")
		c.ConcurrentLimit = 10
	}

	// DownloadLimit
	if c.DownloadLimit <= 0 {
		warnings = append(warnings, "download_limit should be > 0, defaulting to 50")
		c.DownloadLimit = 50
	}

	// GateAcquireTimeout
	if c.GateAcquireTimeout <= 0 {
		c.GateAcquireTimeout = 60 * time.Second
	}

	// RequestTimeout
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	if c.MaxRetries == 0 {
		warnings = append(warnings, "max_retries not specified, defaulting to 3")
		c.MaxRetries = 3
	}

	// BaseRetryDelay
	if c.BaseRetryDelay <= 0 {
		c.BaseRetryDelay = 1 * time.Second
	}

	// MaxDepth: zero means unlimited
	if c.MaxDepth < 0 {
		warnings = append(warnings, "max_depth cannot be negative, setting to 0 (unlimited)")
		c.MaxDepth = 0
	}

	// MaxPageSizeBytes
	if c.MaxPageSizeBytes <= 0 {
		c.MaxPageSizeBytes = 10 << 20 // 10MB
	}

	// BatchSize
	if c.BatchSize <= 0 {
		warnings = append(warnings, "batch_size should be > 0, defaulting to 10")
		c.BatchSize = 10
	}

	// BatchDelay: zero is a valid setting (no pacing); negative is not
	if c.BatchDelay < 0 {
		warnings = append(warnings, "batch_delay cannot be negative, setting to 0")
		c.BatchDelay = 0
	}

	// ChunkSize
	if c.ChunkSize <= 0 {
		c.ChunkSize = 8192
	}

	// OutputDir
	if c.OutputDir == "" {
		warnings = append(warnings, "output_dir is empty, defaulting to './downloads'")
		c.OutputDir = "./downloads"
	}

	// StateDir (only used when the state store is enabled)
	if c.EnableStateStore && c.StateDir == "" {
		warnings = append(warnings, "state_dir is empty, defaulting to './webfetch_state'")
		c.StateDir = "./webfetch_state"
	}

	// HTTP client settings: inherit request timeout, apply transport defaults
	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = c.RequestTimeout
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 100
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 10
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.ExpectContinueTimeout <= 0 {
		c.HTTPClientSettings.ExpectContinueTimeout = 1 * time.Second
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 15 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}

	// Trailing slash on BaseURL keeps prefix checks and relative joins predictable
	if !strings.HasSuffix(c.BaseURL, "/") && parsed.Path == "" {
		c.BaseURL += "/"
	}

	return warnings, nil
}
