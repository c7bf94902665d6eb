package inference

import (
	"errors"
	"fmt"
)

// ErrPoolClosed is returned by Submit after Close.
var ErrPoolClosed = errors.New("worker pool closed")

// tooBusyError indicates the pool could not admit work in time.
type tooBusyError struct{ reason string }

func (e tooBusyError) Error() string { return "too busy: " + e.reason }

// IsTooBusy reports whether err indicates pool saturation.
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// panicError wraps a value recovered from a worker.
type panicError struct{ v any }

func (e panicError) Error() string { return fmt.Sprintf("generation panic: %v", e.v) }

// errEmptyGeneration is reported when decoding leaves no text.
var errEmptyGeneration = errors.New("model produced no text")
