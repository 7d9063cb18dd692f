package damerr

import (
	"errors"
	"fmt"
)

// Kind classifies failures the way callers need to branch on them: absent
// things are normal negative results, conflicts are hard caller errors,
// aborts are a distinct terminal status, everything else is unexpected.
type Kind string

const (
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindAborted    Kind = "ABORTED"
	KindOverflow   Kind = "QUEUE_OVERFLOW"
	KindUnexpected Kind = "UNEXPECTED"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Aborted(msg string) *Error {
	return &Error{Kind: KindAborted, Message: msg}
}

func Overflow(msg string) *Error {
	return &Error{Kind: KindOverflow, Message: msg}
}

func Wrap(err error, format string, args ...any) *Error {
	return &Error{Kind: KindUnexpected, Message: fmt.Sprintf(format, args...), Err: err}
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func IsNotFound(err error) bool { return IsKind(err, KindNotFound) }
func IsConflict(err error) bool { return IsKind(err, KindConflict) }
func IsAborted(err error) bool  { return IsKind(err, KindAborted) }
func IsOverflow(err error) bool { return IsKind(err, KindOverflow) }
