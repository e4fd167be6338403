// Package resilience provides the pipeline error taxonomy plus retry and
// circuit breaker patterns for outbound API calls.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ConfigError marks missing or invalid credentials/configuration. It is
// fatal: the caller surfaces it immediately and makes no partial attempt.
type ConfigError struct {
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %v", e.Source, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError wraps err as a fatal configuration failure for source.
func NewConfigError(source string, err error) *ConfigError {
	return &ConfigError{Source: source, Err: err}
}

// IsConfigError reports whether err's chain contains a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// SourceError marks a transient upstream failure from a data source. Callers
// catch it per-call, log it, and continue the batch; retry policy is theirs.
type SourceError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *SourceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: upstream failure (status %d): %v", e.Source, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: upstream failure: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err as a transient upstream failure for source.
func NewSourceError(source string, statusCode int, err error) *SourceError {
	return &SourceError{Source: source, StatusCode: statusCode, Err: err}
}

// IsSourceError reports whether err's chain contains a SourceError.
func IsSourceError(err error) bool {
	var se *SourceError
	return errors.As(err, &se)
}

// IsTransient returns true if the error is safe to retry: a SourceError, a
// network timeout, a connection-level failure, or a known transient pattern
// from a wrapped HTTP client error. ConfigErrors are never transient.
func IsTransient(err error) bool {
	if err == nil || IsConfigError(err) {
		return false
	}

	if IsSourceError(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
