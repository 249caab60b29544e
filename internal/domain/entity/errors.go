package entity

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("configuration error")
	ErrBackend          = errors.New("backend error")
	ErrUninitialized    = errors.New("backend not initialized")
	ErrUnknownBackend   = errors.New("unknown backend")
	ErrDuplicateBackend = errors.New("duplicate backend")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrDuplicateTool    = errors.New("duplicate tool")
	ErrBrowser          = errors.New("browser error")
)

// BackendError is the single failure kind vendor adapters report.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func NewBackendError(backend, op string, err error) *BackendError {
	return &BackendError{Backend: backend, Op: op, Err: err}
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: backend error", e.Backend, e.Op)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

func (e *BackendError) Is(target error) bool { return target == ErrBackend }

// IsBackendError reports whether err is (or wraps) a vendor call failure.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrBackend)
}

// ConfigError builds an ErrConfiguration with a formatted detail message.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// UninitializedError reports a call on a backend that has not been initialized.
func UninitializedError(backend string) error {
	return fmt.Errorf("%w: %s", ErrUninitialized, backend)
}
