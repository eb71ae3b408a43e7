package sidecar

import (
	"errors"
	"fmt"
)

// Error codes for supervisor and control-plane operations.
const (
	ErrCodeSpawnFailed  = "SPAWN_FAILED"
	ErrCodeIOError      = "IO_ERROR"
	ErrCodeAbnormalExit = "ABNORMAL_EXIT"
	ErrCodeNotRunning   = "NOT_RUNNING"
	ErrCodeNetwork      = "NETWORK_ERROR"
	ErrCodeProtocol     = "PROTOCOL_ERROR"
)

// Error represents a sidecar-specific error with a code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrNotRunning reports a control-plane call made with no live worker.
// Callers can match it with errors.Is.
var ErrNotRunning = &Error{Code: ErrCodeNotRunning, Message: "worker is not running"}

// Is lets errors.Is match sidecar errors by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the sidecar error code of err, or "" if err is not a sidecar error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
