package gateway

import (
	"errors"
	"fmt"
)

// ErrConfigurationIncomplete means the gateway address or the assembled token
// is empty. The cycle is skipped without a network call; this resolves itself
// once the external preference store is filled in.
var ErrConfigurationIncomplete = errors.New("gateway address or token not configured")

// StatusError reports a fetch that did not yield a 200 response. Code 0 means
// the request never produced a response at all (transport failure). A 401
// after roughly a year of operation is the usual sign of an expired token.
type StatusError struct {
	Code  int
	cause error
}

func (e *StatusError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("gateway fetch failed: %v", e.cause)
	}
	return fmt.Sprintf("gateway fetch failed: status %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.cause
}

// DecodeError reports a 200 response whose body was not well-formed JSON.
// The raw body is kept for diagnostic logging, never for retry.
type DecodeError struct {
	Body  []byte
	cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("gateway response decode failed: %v", e.cause)
}

func (e *DecodeError) Unwrap() error {
	return e.cause
}
