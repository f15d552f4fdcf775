package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a core failure. Values are stable and surface in
// CLI and tool output.
type ErrorKind string

const (
	KindInvalidIDFormat ErrorKind = "InvalidIdFormat"
	KindAmbiguousID     ErrorKind = "AmbiguousId"
	KindNotFound        ErrorKind = "NotFound"
	KindUnknownBucket   ErrorKind = "UnknownBucket"
	KindUnknownParent   ErrorKind = "UnknownParent"
	KindDuplicateBucket ErrorKind = "DuplicateBucket"
	KindLastBucket      ErrorKind = "LastBucket"
	KindNoHistory       ErrorKind = "NoHistory"
	KindValidation      ErrorKind = "ValidationError"
	KindCancelled       ErrorKind = "Cancelled"
	KindInternal        ErrorKind = "Internal"
)

// Sentinels for errors.Is comparisons against a kind.
var (
	ErrInvalidIDFormat = &Error{Kind: KindInvalidIDFormat}
	ErrAmbiguousID     = &Error{Kind: KindAmbiguousID}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrUnknownBucket   = &Error{Kind: KindUnknownBucket}
	ErrUnknownParent   = &Error{Kind: KindUnknownParent}
	ErrDuplicateBucket = &Error{Kind: KindDuplicateBucket}
	ErrLastBucket      = &Error{Kind: KindLastBucket}
	ErrNoHistory       = &Error{Kind: KindNoHistory}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrCancelled       = &Error{Kind: KindCancelled}
)

// Error is a classified core failure with a human-readable message and
// optional machine-readable details.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetails attaches details and returns e.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of err. Errors that did not originate in core
// report KindInternal; nil reports "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
