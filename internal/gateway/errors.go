package gateway

import (
	"errors"
	"fmt"
)

// ErrUpstreamUnavailable wraps every failure to obtain a usable response:
// transport errors, timeouts, non-2xx statuses and undecodable bodies.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// StatusError reports a non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.Endpoint, e.Status)
}

// Unwrap lets errors.Is match ErrUpstreamUnavailable.
func (e *StatusError) Unwrap() error {
	return ErrUpstreamUnavailable
}

func unavailable(endpoint string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, endpoint, err)
}
