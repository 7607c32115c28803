package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/webfetch/pkg/utils"
)

func TestValidate_RequiresBaseURL(t *testing.T) {
	cfg := &AppConfig{}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestValidate_RejectsBadScheme(t *testing.T) {
	cfg := &AppConfig{BaseURL: "ftp://example.com/files"}
	_, err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestValidate_AppliesDefaults(t *testing.T) {
	cfg := &AppConfig{BaseURL: "https://docs.example.com/guide/"}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)

	assert.Equal(t, "webfetch/1.0", cfg.UserAgent)
	assert.Equal(t, 60*time.Second, cfg.RateLimitTimeout)
	assert.Equal(t, 10, cfg.ConcurrentLimit)
	assert.Equal(t, 50, cfg.DownloadLimit)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseRetryDelay)
	assert.Equal(t, int64(10<<20), cfg.MaxPageSizeBytes)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 8192, cfg.ChunkSize)
	assert.Equal(t, "./downloads", cfg.OutputDir)

	// HTTP client settings inherit the request timeout
	assert.Equal(t, cfg.RequestTimeout, cfg.HTTPClientSettings.Timeout)
	assert.Equal(t, 100, cfg.HTTPClientSettings.MaxIdleConns)
}

func TestValidate_NegativeRateWarnsAndDefaults(t *testing.T) {
	cfg := &AppConfig{BaseURL: "https://example.com/", RequestsPerSecond: -5}
	warnings, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, float64(1), cfg.RequestsPerSecond)

	found := false
	for _, w := range warnings {
		if w == "requests_per_second cannot be negative, defaulting to 1" {
			found = true
		}
	}
	assert.True(t, found, "expected a warning about negative requests_per_second")
}

func TestValidate_ZeroRateDisablesLimiter(t *testing.T) {
	cfg := &AppConfig{BaseURL: "https://example.com/"}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, float64(0), cfg.RequestsPerSecond)
	assert.Equal(t, time.Duration(0), cfg.MinInterval())
}

func TestValidate_AppendsTrailingSlash(t *testing.T) {
	cfg := &AppConfig{BaseURL: "https://example.com"}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/", cfg.BaseURL)
}

func TestValidate_StateDirDefaultOnlyWhenEnabled(t *testing.T) {
	cfg := &AppConfig{BaseURL: "https://example.com/"}
	_, err := cfg.Validate()
	require.NoError(t, err)
	assert.Empty(t, cfg.StateDir)

	cfg = &AppConfig{BaseURL: "https://example.com/", EnableStateStore: true}
	_, err = cfg.Validate()
	require.NoError(t, err)
	assert.Equal(t, "./webfetch_state", cfg.StateDir)
}

func TestMinInterval(t *testing.T) {
	cfg := &AppConfig{RequestsPerSecond: 4}
	assert.Equal(t, 250*time.Millisecond, cfg.MinInterval())
}

func TestAppConfig_YAMLRoundTrip(t *testing.T) {
	raw := `
base_url: https://docs.example.com/guide/
requests_per_second: 2
concurrent_limit: 8
max_retries: 4
batch_size: 25
respect_robots: true
http_client_settings:
  max_idle_conns: 64
  force_attempt_http2: false
`
	var cfg AppConfig
	require.NoError(t, yaml.Unmarshal([]byte(raw), &cfg))

	assert.Equal(t, float64(2), cfg.RequestsPerSecond)
	assert.Equal(t, 8, cfg.ConcurrentLimit)
	assert.Equal(t, 4, cfg.MaxRetries)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.True(t, cfg.RespectRobots)
	assert.Equal(t, 64, cfg.HTTPClientSettings.MaxIdleConns)
	require.NotNil(t, cfg.HTTPClientSettings.ForceAttemptHTTP2)
	assert.False(t, *cfg.HTTPClientSettings.ForceAttemptHTTP2)
}
