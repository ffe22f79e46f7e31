package design

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrHandshakeTimeout matches every *TimeoutError.
	ErrHandshakeTimeout = errors.New("design: handshake timed out")
	// ErrDisconnected is returned by a pending Connect when the API is
	// disconnected before the handshake completes.
	ErrDisconnected = errors.New("design: disconnected")
	// ErrNotDesignMode is returned when a client outside the page
	// builder tries to connect.
	ErrNotDesignMode = errors.New("design: client is not running in a design mode")
)

// TimeoutError reports a client handshake that got no acknowledgment.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("design: no ClientAcknowledged from host within %s", e.Timeout)
}

// Is makes errors.Is(err, ErrHandshakeTimeout) hold.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrHandshakeTimeout
}
