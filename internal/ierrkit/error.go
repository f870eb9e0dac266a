// Package ierrkit implements the error taxonomy shared by the planner,
// executor and save pipeline: every recoverable condition surfaces a
// class and an origin instead of a bare string (spec.md section 6/7).
package ierrkit

import (
	"errors"
	"fmt"
)

// Class is the kind of failure. The set is closed and mirrors the wire
// taxonomy: Unsupported, Conflict, Corruption, InvariantViolation,
// Internal, Budget.
type Class string

const (
	ClassUnsupported        Class = "unsupported"
	ClassConflict           Class = "conflict"
	ClassCorruption         Class = "corruption"
	ClassInvariantViolation Class = "invariant_violation"
	ClassInternal           Class = "internal"
	ClassBudget             Class = "budget"
)

// Origin is the subsystem that raised the error.
type Origin string

const (
	OriginExecutor Origin = "executor"
	OriginQuery    Origin = "query"
	OriginStore    Origin = "store"
	OriginIndex    Origin = "index"
	OriginCommit   Origin = "commit"
)

// Error is the typed error every package in this module returns for
// recoverable conditions. Messages are stable prefixes so callers can
// match on them the way spec.md section 6 requires.
type Error struct {
	Class   Class
	Origin  Origin
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s/%s: %s: %v", e.Class, e.Origin, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s/%s: %s", e.Class, e.Origin, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a typed error with no wrapped cause.
func New(class Class, origin Origin, message string) *Error {
	return &Error{Class: class, Origin: origin, Message: message}
}

// Newf builds a typed error with a formatted message.
func Newf(class Class, origin Origin, format string, args ...any) *Error {
	return &Error{Class: class, Origin: origin, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches class/origin to an underlying cause.
func Wrap(class Class, origin Origin, cause error, message string) *Error {
	return &Error{Class: class, Origin: origin, Message: message, Cause: cause}
}

func Unsupported(origin Origin, message string) *Error {
	return New(ClassUnsupported, origin, message)
}

func Unsupportedf(origin Origin, format string, args ...any) *Error {
	return Newf(ClassUnsupported, origin, format, args...)
}

func Conflict(origin Origin, message string) *Error {
	return New(ClassConflict, origin, message)
}

func Corruption(origin Origin, message string) *Error {
	return New(ClassCorruption, origin, message)
}

func InvariantViolation(origin Origin, message string) *Error {
	return New(ClassInvariantViolation, origin, message)
}

func Internal(origin Origin, message string) *Error {
	return New(ClassInternal, origin, message)
}

func Budget(origin Origin, message string) *Error {
	return New(ClassBudget, origin, message)
}

// Is reports whether err is an *Error of the given class.
func Is(err error, class Class) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Class == class
	}
	return false
}

// OriginOf returns the origin of err, or "" if err is not an *Error.
func OriginOf(err error) Origin {
	var e *Error
	if errors.As(err, &e) {
		return e.Origin
	}
	return ""
}
