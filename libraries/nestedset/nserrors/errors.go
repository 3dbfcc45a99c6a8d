// Package nserrors implements four error kinds for the nested-set
// core, built the way an errhand-style package builds display errors:
// a builder that accumulates a display message, a details block, and
// an optional wrapped cause, plus a Verbose renderer that indents
// nested causes.
package nserrors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Kind distinguishes the four error categories the core reports.
type Kind string

const (
	// MoveNotPossible covers every Move Engine precondition failure:
	// invalid position literal, unsaved source, unresolvable target,
	// self-target, target-inside-source-subtree, cross-scope target.
	MoveNotPossible Kind = "MoveNotPossible"

	// RecordNotFound is raised when a reload or resolve returns no row.
	RecordNotFound Kind = "RecordNotFound"

	// InvariantViolated is raised by the Validator or a post-move
	// sanity check.
	InvariantViolated Kind = "InvariantViolated"

	// StoreError wraps failures propagated from the record store
	// (connectivity, deadlock, constraint violations).
	StoreError Kind = "StoreError"
)

// Error is the concrete error type produced by this package. It
// carries a Kind so callers can branch with errors.As, a short
// display message, an optional details block, and an optional
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Details string
	cause   error
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an existing cause. If
// cause is nil, Wrap returns nil, matching errhand.BuildIf's
// no-op-on-nil convention.
func Wrap(cause error, kind Kind, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: errors.WithStack(cause)}
}

// WithDetails appends a details line and returns the receiver, so
// calls can be chained the way errhand's AddDetails is chained.
func (e *Error) WithDetails(format string, args ...interface{}) *Error {
	if e == nil {
		return nil
	}
	detail := fmt.Sprintf(format, args...)
	if e.Details != "" {
		e.Details += "\n"
	}
	e.Details += detail
	return e
}

func (e *Error) Error() string {
	return color.RedString("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Verbose renders the full error including details and any nested
// cause chain, indenting each nesting level.
func (e *Error) Verbose() string {
	sections := []string{e.Error()}
	if e.Details != "" {
		sections = append(sections, e.Details)
	}
	if e.cause != nil {
		sections = append(sections, "cause:")
		var causeStr string
		var ve *Error
		if errors.As(e.cause, &ve) {
			causeStr = ve.Verbose()
		} else {
			causeStr = e.cause.Error()
		}
		sections = append(sections, indent(causeStr, "\t"))
	}
	return strings.Join(sections, "\n")
}

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, nserrors.New(nserrors.MoveNotPossible, "")) matches
// any MoveNotPossible error regardless of its message.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func indent(str, indentStr string) string {
	lines := strings.Split(str, "\n")
	return indentStr + strings.Join(lines, "\n"+indentStr)
}
