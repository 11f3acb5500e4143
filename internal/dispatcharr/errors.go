package dispatcharr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized = errors.New("dispatcharr: unauthorized")
	ErrNotFound     = errors.New("dispatcharr: not found")
	ErrUpstream     = errors.New("dispatcharr: upstream error")
	ErrBadResponse  = errors.New("dispatcharr: malformed response")
	ErrTransport    = errors.New("dispatcharr: transport failure")
)

// APIError carries the HTTP context of a failed call. errors.Is matches both
// the sentinel and the underlying error.
type APIError struct {
	Sentinel error
	Op       string
	Status   int
	Body     string
	Err      error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}

// IsUnauthorized reports whether err means the key must be refreshed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusCode extracts the HTTP status of an API error, or 0.
func StatusCode(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}

func statusSentinel(code int) error {
	switch {
	case code == 401:
		return ErrUnauthorized
	case code == 404:
		return ErrNotFound
	default:
		return ErrUpstream
	}
}
