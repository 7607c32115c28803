package utils

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed       = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError   = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError   = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError    = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrNotFound          = errors.New("resource not found (404)")         // Definitive miss, never retried
	ErrRobotsDisallowed  = errors.New("disallowed by robots.txt")
	ErrRateLimitTimeout  = errors.New("rate limiter wait exceeded timeout")
	ErrSessionNotStarted = errors.New("session not started")
	ErrGateTimeout       = errors.New("timeout acquiring concurrency gate")
	ErrParsing           = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL, JSON)
	ErrFilesystem        = errors.New("filesystem error") // Wraps os errors
	ErrDatabase          = errors.New("database error")   // Wraps badger errors
	ErrRequestCreation   = errors.New("failed to create HTTP request")
	ErrResponseBodyRead  = errors.New("failed to read response body")
	ErrConfigValidation  = errors.New("configuration validation error")
)

// Error kinds recorded by the obs.ErrorTracker. The fetch and download
// pipelines record every attempt failure under one of these.
const (
	KindHTTPError       = "http_error"
	KindNetworkError    = "network_error"
	KindUnexpectedError = "unexpected_error"
	KindDownloadError   = "download_error"
	KindFileError       = "file_error"
)

// ClassifyAttempt maps an error from a single fetch/download attempt to
// one of the tracker kinds.
func ClassifyAttempt(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrClientHTTPError),
		errors.Is(err, ErrServerHTTPError),
		errors.Is(err, ErrOtherHTTPError):
		return KindHTTPError
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetworkError
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "no such host", "reset by peer", "broken pipe", "timeout", "tls", "eof"} {
		if strings.Contains(msg, s) {
			return KindNetworkError
		}
	}
	return KindUnexpectedError
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}

		// Check for common network error substrings if the wrapped error
		// isn't a known sentinel
		errMsg := err.Error()
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "Timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "RetryFailed_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "RetryFailed_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "RetryFailed_DNSLookup"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "RetryFailed_NetworkTimeout"
		}
		return "RetryFailed_NetworkOther" // Catch-all after retries are spent
	case errors.Is(err, ErrNotFound):
		return "HTTP_404"
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		if strings.Contains(errMsg, " 403 ") {
			return "HTTP_403"
		}
		if strings.Contains(errMsg, " 401 ") {
			return "HTTP_401"
		}
		if strings.Contains(errMsg, " 429 ") {
			return "HTTP_429"
		}
		return "HTTP_4xx" // Generic 4xx
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrRateLimitTimeout):
		return "Resource_RateLimitTimeout"
	case errors.Is(err, ErrGateTimeout):
		return "Resource_GateTimeout"
	case errors.Is(err, ErrSessionNotStarted):
		return "Session_NotStarted"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		if strings.Contains(errMsg, "JSON") {
			return "Content_ParsingJSON"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		if errors.Is(err, os.ErrPermission) {
			return "Filesystem_Permission"
		}
		if errors.Is(err, os.ErrNotExist) {
			return "Filesystem_NotExist"
		}
		if errors.Is(err, os.ErrExist) {
			return "Filesystem_Exist"
		}
		return "Filesystem_Other"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	// Network errors (if not wrapped by custom sentinels)
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network_Timeout"
		}
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}
