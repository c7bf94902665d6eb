package manager

import (
	"errors"
	"fmt"
)

// ErrorKind classifies lifecycle failures.
type ErrorKind string

const (
	// KindConfig is a missing or invalid deployment setting (e.g. credential).
	KindConfig ErrorKind = "config"
	// KindLoad is a provider, network or resource failure during load.
	KindLoad ErrorKind = "load"
)

// Error is returned by Load and Reload. It never escapes as a process-fatal
// condition; the manager records it and moves to StateFailed.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func configError(msg string) error { return &Error{Kind: KindConfig, Msg: msg} }

func loadError(msg string, err error) error { return &Error{Kind: KindLoad, Msg: msg, Err: err} }

func kindOf(err error) (ErrorKind, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, true
	}
	return "", false
}

// IsConfigError reports whether err is a missing/invalid configuration error.
func IsConfigError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindConfig
}

// IsLoadError reports whether err is a provider/resource failure during load.
func IsLoadError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindLoad
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// binary built without llama support).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var d dependencyUnavailableError
	return errors.As(err, &d)
}
