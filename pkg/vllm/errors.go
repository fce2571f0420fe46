package vllm

import (
	"errors"
	"fmt"
)

// Failure causes. Every error returned by the client wraps exactly one of
// these, so callers can branch with errors.Is while still getting the full
// human-readable detail from Error().
var (
	// ErrTransport covers connection refused, DNS, timeouts and broken reads.
	ErrTransport = errors.New("transport error")

	// ErrProtocol covers non-2xx HTTP statuses. See StatusError.
	ErrProtocol = errors.New("protocol error")

	// ErrShape covers 2xx bodies that are not the expected JSON shape.
	ErrShape = errors.New("unexpected response shape")

	// ErrDecode covers malformed streamed JSON lines.
	ErrDecode = errors.New("decode error")
)

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: server returned status %d: %s", ErrProtocol, e.StatusCode, e.Body)
}

// Unwrap makes errors.Is(err, ErrProtocol) hold.
func (e *StatusError) Unwrap() error {
	return ErrProtocol
}
