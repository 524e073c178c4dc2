// Package errors provides centralized error definitions for the reverie
// supervisor. It defines sentinel errors for the session, connector, and
// scheduler subsystems, a typed SessionError carrying diagnostic context,
// and severity classification helpers.
//
// Creating errors:
//
//	err := errors.NewSessionError("attach failed", errors.ErrAttachFailed).WithToken(token)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrBindDenied) { ... }
//
//	var sessErr *errors.SessionError
//	if errors.As(err, &sessErr) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Session-related sentinel errors
var (
	// ErrNoSession indicates that no session is currently live.
	ErrNoSession = New("no live session")
	// ErrSessionSuperseded indicates that a notification arrived for a
	// session that is no longer the controller's current session.
	ErrSessionSuperseded = New("session superseded")
	// ErrAttachFailed indicates that attaching to the remote service failed.
	ErrAttachFailed = New("attach to remote service failed")
)

// Connector-related sentinel errors
var (
	// ErrBindRejected indicates that the connector refused the bind request.
	ErrBindRejected = New("bind rejected")
	// ErrBindDenied indicates that the bind request failed a permission check.
	ErrBindDenied = New("bind denied: permission")
	// ErrNotBound indicates an operation on a target that was never bound.
	ErrNotBound = New("target not bound")
	// ErrServiceGone indicates the remote service process has terminated.
	ErrServiceGone = New("remote service gone")
	// ErrConnectorClosed indicates the connector has been shut down.
	ErrConnectorClosed = New("connector closed")
)

// Scheduler-related sentinel errors
var (
	// ErrSchedulerStopped indicates a task was posted to a stopped run loop.
	ErrSchedulerStopped = New("scheduler stopped")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// SessionError is an error from the session subsystem with diagnostic
// context attached. The Reason field mirrors the stop-reason strings the
// controller logs, so an error and its log line can be correlated.
type SessionError struct {
	msg    string
	err    error
	Token  string // Session token, if known
	Reason string // Stop reason, if the error caused a stop
}

// NewSessionError creates a SessionError wrapping an underlying error.
func NewSessionError(msg string, err error) *SessionError {
	return &SessionError{msg: msg, err: err}
}

// WithToken attaches a session token to the error.
func (e *SessionError) WithToken(token string) *SessionError {
	e.Token = token
	return e
}

// WithReason attaches a stop reason to the error.
func (e *SessionError) WithReason(reason string) *SessionError {
	e.Reason = reason
	return e
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	s := e.msg
	if e.Token != "" {
		s = fmt.Sprintf("%s (session %s)", s, e.Token)
	}
	if e.Reason != "" {
		s = fmt.Sprintf("%s: %s", s, e.Reason)
	}
	if e.err != nil {
		s = fmt.Sprintf("%s: %v", s, e.err)
	}
	return s
}

// Unwrap returns the underlying error, if any.
func (e *SessionError) Unwrap() error {
	return e.err
}

// SeverityOf classifies an error for logging purposes. Failures that the
// controller resolves on its own (stale notifications, double releases)
// are warnings; everything else is an error.
func SeverityOf(err error) Severity {
	switch {
	case err == nil:
		return SeverityDebug
	case Is(err, ErrSessionSuperseded), Is(err, ErrNoSession):
		return SeverityInfo
	case Is(err, ErrServiceGone), Is(err, ErrTimeout):
		return SeverityWarning
	default:
		return SeverityError
	}
}

// IsBindFailure reports whether the error represents a failed bind request,
// either a plain rejection or a permission denial.
func IsBindFailure(err error) bool {
	return Is(err, ErrBindRejected) || Is(err, ErrBindDenied)
}
