package handler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/muurk/ftirlink/internal/logging"
	"github.com/muurk/ftirlink/internal/protocol"
	"go.uber.org/zap"
)

// Handler consumes a decoded message
type Handler interface {
	Handle(msg protocol.RawMessage) error
}

// Func adapts a function to Handler
type Func func(msg protocol.RawMessage) error

// Handle calls f(msg)
func (f Func) Handle(msg protocol.RawMessage) error {
	return f(msg)
}

// SampleFunc receives decoded samples. The slice belongs to the callee.
type SampleFunc func(samples []float64) error

var (
	// ErrCallbackFailed wraps errors and panics raised by callbacks
	ErrCallbackFailed = errors.New("callback failed")

	// ErrUnexpectedCommand is returned when a handler receives a command it
	// was not registered for
	ErrUnexpectedCommand = errors.New("unexpected command")
)

// callbackList is an ordered set of callbacks addressed by id
type callbackList[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []callbackEntry[T]
}

type callbackEntry[T any] struct {
	id int
	fn T
}

func (l *callbackList[T]) add(fn T) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.entries = append(l.entries, callbackEntry[T]{id: l.nextID, fn: fn})
	return l.nextID
}

func (l *callbackList[T]) remove(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (l *callbackList[T]) clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

func (l *callbackList[T]) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// snapshot copies the entries so callbacks run without the lock held and may
// add or remove callbacks themselves.
func (l *callbackList[T]) snapshot() []callbackEntry[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]callbackEntry[T], len(l.entries))
	copy(out, l.entries)
	return out
}

// run invokes every callback through call, isolating failures. The result
// joins all failures, each wrapped in ErrCallbackFailed.
func run[T any](name string, l *callbackList[T], call func(fn T) error) error {
	var errs []error
	for _, e := range l.snapshot() {
		if err := safeCall(func() error { return call(e.fn) }); err != nil {
			logging.Error("Callback failed",
				zap.String("handler", name),
				zap.Int("callback_id", e.id),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%w: %s callback %d: %w", ErrCallbackFailed, name, e.id, err))
		}
	}
	return errors.Join(errs...)
}

// safeCall runs fn and converts a panic into an error
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
