package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a provider failure for retry decisions.
type Kind int

const (
	// KindUnknown covers failures the classifier cannot place. They are
	// retried with a reduced attempt budget.
	KindUnknown Kind = iota
	// KindTransient failures (rate limits, timeouts, 5xx) are retried with
	// exponential backoff.
	KindTransient
	// KindFatal failures (auth, malformed request, oversized payload) are
	// never retried.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     Kind
	Status   int
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s error (HTTP %d): %v", e.Provider, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the classification from an error chain. Anything that is
// not a provider error is Unknown.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// statusError classifies an HTTP response code. Rate limiting, request
// timeouts, and server-side failures are worth retrying; client-side
// rejections are not.
func statusError(name string, status int, body string) *Error {
	kind := KindUnknown
	switch {
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		kind = KindTransient
	case status == http.StatusBadRequest,
		status == http.StatusUnauthorized,
		status == http.StatusForbidden,
		status == http.StatusRequestEntityTooLarge,
		status == http.StatusUnsupportedMediaType:
		kind = KindFatal
	}
	return &Error{Provider: name, Kind: kind, Status: status, Err: fmt.Errorf("%s", body)}
}

// transportError classifies a failure that happened before any HTTP status
// arrived. Cancellation propagates untouched so callers can tell shutdown
// apart from provider trouble.
func transportError(name string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	kind := KindUnknown
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		kind = KindTransient
	}
	return &Error{Provider: name, Kind: kind, Err: err}
}

func fatalError(name string, err error) *Error {
	return &Error{Provider: name, Kind: KindFatal, Err: err}
}
