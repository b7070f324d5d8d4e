package transport

import (
	"errors"
	"fmt"
)

// DataCallback receives each chunk read from the transport. The slice is
// owned by the callee.
type DataCallback func(data []byte)

// Transport is a bidirectional byte stream to an instrument.
type Transport interface {
	// Open acquires the underlying device and starts the reader goroutine.
	Open() error
	// Close releases the device. Closing a closed transport is a no-op.
	Close() error
	// Send writes data in full or returns an error.
	Send(data []byte) error
	// OnDataReceived sets the callback for received chunks.
	OnDataReceived(cb DataCallback)
	// IsOpen reports whether Open succeeded and Close has not been called.
	IsOpen() bool
	// ListAvailablePorts enumerates the addresses this transport can open.
	ListAvailablePorts() ([]string, error)
}

// ErrNotOpen is returned when sending on a transport that is not open.
var ErrNotOpen = errors.New("transport not open")

// Error describes a failed transport operation.
type Error struct {
	Op   string // "open", "close", "send", "read", "list"
	Port string
	Err  error
}

func (e *Error) Error() string {
	if e.Port == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Port, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, port string, err error) *Error {
	return &Error{Op: op, Port: port, Err: err}
}
