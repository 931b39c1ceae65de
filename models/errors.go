package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// FetchError is a failed navigation or HTTP fetch. StatusCode is 0 when the
// request never produced a response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: timeouts, 5xx and
// dropped connections. 4xx responses are final for that page.
func (e *FetchError) Retryable() bool {
	if e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	if e.Err == nil || errors.Is(e.Err, context.Canceled) {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) ||
		errors.Is(e.Err, syscall.ECONNRESET) ||
		errors.Is(e.Err, syscall.ECONNREFUSED) ||
		errors.Is(e.Err, io.ErrUnexpectedEOF) ||
		errors.Is(e.Err, io.EOF) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	return false
}

// ParseError marks malformed HTML, date or location text. Record scoped and
// never retried.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// WriteConflictError is a storage failure for one record (or a whole batch
// when IdentityHash is empty).
type WriteConflictError struct {
	IdentityHash string
	Name         string
	Err          error
}

func (e *WriteConflictError) Error() string {
	if e.IdentityHash == "" {
		return fmt.Sprintf("write batch: %v", e.Err)
	}
	return fmt.Sprintf("write %q (%s): %v", e.Name, e.IdentityHash, e.Err)
}

func (e *WriteConflictError) Unwrap() error { return e.Err }

// FatalSourceError aborts one source after its pagination failure budget is
// exhausted. Other sources keep running.
type FatalSourceError struct {
	Source   string
	Failures int
	Err      error
}

func (e *FatalSourceError) Error() string {
	return fmt.Sprintf("source %s aborted after %d consecutive failures: %v", e.Source, e.Failures, e.Err)
}

func (e *FatalSourceError) Unwrap() error { return e.Err }

// IsRetryable is the default predicate for the retry utility.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable()
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return false
	}
	var wc *WriteConflictError
	return errors.As(err, &wc)
}
