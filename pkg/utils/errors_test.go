package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyAttempt(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("%w: status 404", ErrNotFound), KindHTTPError},
		{"server error", fmt.Errorf("%w: status 503", ErrServerHTTPError), KindHTTPError},
		{"client error", fmt.Errorf("%w: status 403", ErrClientHTTPError), KindHTTPError},
		{"other status", fmt.Errorf("%w: status 301", ErrOtherHTTPError), KindHTTPError},
		{"connection refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), KindNetworkError},
		{"dns failure", errors.New("lookup nope.invalid: no such host"), KindNetworkError},
		{"tls failure", errors.New("tls: handshake failure"), KindNetworkError},
		{"unexpected", errors.New("something else entirely"), KindUnexpectedError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyAttempt(tt.err); got != tt.want {
				t.Errorf("ClassifyAttempt(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, "None"},
		{"retry exhausted on 5xx", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 500", ErrServerHTTPError)), "RetryFailed_HTTPServer"},
		{"retry exhausted on refused", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("connection refused")), "RetryFailed_ConnectionRefused"},
		{"plain 404", fmt.Errorf("%w: status 404 for \"x\"", ErrNotFound), "HTTP_404"},
		{"403", fmt.Errorf("%w: status 403 Forbidden", ErrClientHTTPError), "HTTP_403"},
		{"429", fmt.Errorf("%w: status 429 Too Many Requests", ErrClientHTTPError), "HTTP_429"},
		{"generic 4xx", fmt.Errorf("%w: status 418 Teapot", ErrClientHTTPError), "HTTP_4xx"},
		{"5xx", fmt.Errorf("%w: status 502 Bad Gateway", ErrServerHTTPError), "HTTP_5xx"},
		{"rate limit timeout", fmt.Errorf("%w after 60s", ErrRateLimitTimeout), "Resource_RateLimitTimeout"},
		{"gate timeout", fmt.Errorf("%w after 60s", ErrGateTimeout), "Resource_GateTimeout"},
		{"closed session", ErrSessionNotStarted, "Session_NotStarted"},
		{"robots", fmt.Errorf("%w: \"https://x/private\"", ErrRobotsDisallowed), "Policy_Robots"},
		{"context canceled", context.Canceled, "System_ContextCanceled"},
		{"deadline", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
		{"database", fmt.Errorf("%w: conflict", ErrDatabase), "Database_Other"},
		{"config", fmt.Errorf("%w: base_url is required", ErrConfigValidation), "Config_Validation"},
		{"unknown", errors.New("mystery"), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
