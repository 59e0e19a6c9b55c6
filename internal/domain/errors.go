package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindMalformedVersion       ErrorKind = "MALFORMED_VERSION"
	KindVersionUnderflow       ErrorKind = "VERSION_UNDERFLOW"
	KindInvalidArgument        ErrorKind = "INVALID_ARGUMENT"
	KindInvalidTransition      ErrorKind = "INVALID_TRANSITION"
	KindAlreadyDecided         ErrorKind = "ALREADY_DECIDED"
	KindAlreadyCompleted       ErrorKind = "ALREADY_COMPLETED"
	KindAlreadyAssigned        ErrorKind = "ALREADY_ASSIGNED"
	KindNotFound               ErrorKind = "NOT_FOUND"
	KindNoReviewersAssigned    ErrorKind = "NO_REVIEWERS_ASSIGNED"
	KindConflict               ErrorKind = "CONFLICT"
	KindConcurrentModification ErrorKind = "CONCURRENT_MODIFICATION"
	KindUnauthorized           ErrorKind = "UNAUTHORIZED"
	KindForbidden              ErrorKind = "FORBIDDEN"
)

// Error is the structured failure returned by every workflow operation.
// Two errors match under errors.Is when their kinds are equal, so callers
// branch on the sentinels below regardless of the message.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Kind == other.Kind
}

var (
	ErrMalformedVersion       = &Error{Kind: KindMalformedVersion}
	ErrVersionUnderflow       = &Error{Kind: KindVersionUnderflow}
	ErrInvalidArgument        = &Error{Kind: KindInvalidArgument}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrAlreadyDecided         = &Error{Kind: KindAlreadyDecided}
	ErrAlreadyCompleted       = &Error{Kind: KindAlreadyCompleted}
	ErrAlreadyAssigned        = &Error{Kind: KindAlreadyAssigned}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrNoReviewersAssigned    = &Error{Kind: KindNoReviewersAssigned}
	ErrConflict               = &Error{Kind: KindConflict}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
	ErrUnauthorized           = &Error{Kind: KindUnauthorized}
	ErrForbidden              = &Error{Kind: KindForbidden}
)

func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// TransitionError reports a transition attempted from a state that does not permit it.
type TransitionError struct {
	From      string
	Attempted string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s from %s", KindInvalidTransition, e.Attempted, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func InvalidTransition(from, attempted string) error {
	return &TransitionError{From: from, Attempted: attempted}
}

// KindOf returns the stable discriminator for err, or "" when err did not
// originate in the workflow engine.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var transition *TransitionError
	if errors.As(err, &transition) {
		return KindInvalidTransition
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	return ""
}
