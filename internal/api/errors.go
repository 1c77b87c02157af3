package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuthExpired indicates the backend rejected the stored bearer token.
	ErrAuthExpired = errors.New("api: authentication expired")
	// ErrInvalidCredentials indicates a login attempt with bad credentials.
	ErrInvalidCredentials = errors.New("api: invalid credentials")
)

// NetworkError wraps a transport-level failure: connection refused,
// timeout, DNS failure. These are transient and retried on the next
// sync cycle, never treated as an authentication signal.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("api: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err originated at the transport layer.
func IsNetworkError(err error) bool {
	var networkErr *NetworkError
	return errors.As(err, &networkErr)
}

// RequestError is a non-2xx response other than a token rejection. The
// Detail field carries the server's human-readable message verbatim.
type RequestError struct {
	StatusCode int
	Detail     string
}

func (e *RequestError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("api: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: %s (status %d)", e.Detail, e.StatusCode)
}

// IsValidationError reports whether err is a 4xx rejection of the
// request payload, e.g. a duplicate or malformed device id.
func IsValidationError(err error) bool {
	var requestErr *RequestError
	if !errors.As(err, &requestErr) {
		return false
	}
	return requestErr.StatusCode >= http.StatusBadRequest && requestErr.StatusCode < http.StatusInternalServerError
}
