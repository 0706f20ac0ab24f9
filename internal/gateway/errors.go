package gateway

import (
	"errors"
	"fmt"
)

// Reason classifies a gateway failure.
type Reason string

const (
	ReasonNetwork               Reason = "network"
	ReasonBadCredential         Reason = "bad-credential"
	ReasonSSOChallenge          Reason = "sso-challenge"
	ReasonSessionExpired        Reason = "session-expired"
	ReasonSubmissionRejected    Reason = "submission-rejected"
	ReasonSubmissionUnknown     Reason = "submission-unknown"
	ReasonPermissionDenied      Reason = "permission-denied"
	ReasonMissingCalendarSource Reason = "missing-calendar-source"
	ReasonUnknown               Reason = "unknown"
)

// Error is returned by every gateway call. Use errors.Is against the
// sentinels below to test the reason.
type Error struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Op == "" && t.Err == nil && t.Reason == e.Reason
}

var (
	ErrNetwork               = &Error{Reason: ReasonNetwork}
	ErrBadCredential         = &Error{Reason: ReasonBadCredential}
	ErrSSOChallenge          = &Error{Reason: ReasonSSOChallenge}
	ErrSessionExpired        = &Error{Reason: ReasonSessionExpired}
	ErrSubmissionRejected    = &Error{Reason: ReasonSubmissionRejected}
	ErrSubmissionUnknown     = &Error{Reason: ReasonSubmissionUnknown}
	ErrPermissionDenied      = &Error{Reason: ReasonPermissionDenied}
	ErrMissingCalendarSource = &Error{Reason: ReasonMissingCalendarSource}
)

func newError(op string, reason Reason, err error) *Error {
	return &Error{Op: op, Reason: reason, Err: err}
}

func errorf(op string, reason Reason, format string, args ...any) *Error {
	return &Error{Op: op, Reason: reason, Err: fmt.Errorf(format, args...)}
}

// ReasonOf reports the reason carried by err, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ReasonUnknown
}
