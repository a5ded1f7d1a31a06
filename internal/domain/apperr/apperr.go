// Package apperr defines the machine-checkable error kinds shared by the
// leave, attendance and policy domains.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation          Kind = "validation_error"
	KindUnknownLeaveType    Kind = "unknown_leave_type"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindStateConflict       Kind = "state_conflict"
	KindAlreadyCheckedIn    Kind = "already_checked_in"
	KindNoOpenSession       Kind = "no_open_session"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInternal            Kind = "internal_error"
)

// Error carries a Kind plus a human message. Two *Error values match under
// errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrUnknownLeaveType    = &Error{Kind: KindUnknownLeaveType, Message: "unknown leave type"}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance, Message: "insufficient leave balance"}
	ErrStateConflict       = &Error{Kind: KindStateConflict, Message: "transition not allowed from current state"}
	ErrAlreadyCheckedIn    = &Error{Kind: KindAlreadyCheckedIn, Message: "already checked in"}
	ErrNoOpenSession       = &Error{Kind: KindNoOpenSession, Message: "no open attendance session"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrForbidden           = &Error{Kind: KindForbidden, Message: "forbidden"}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindStateConflict, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

// KindOf reports the kind of the first kinded error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var kinded interface{ ErrorKind() Kind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}
	return KindInternal
}

func (e *Error) ErrorKind() Kind {
	return e.Kind
}
