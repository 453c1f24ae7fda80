// Package kerr defines the typed error kinds the engine raises, per the
// error handling design in spec.md §7. Every kind is a marked sentinel so
// callers can test with errors.Is regardless of how much context has been
// wrapped onto it, and constructor functions attach the structured fields
// (thing, index, value, resource, action, ...) callers need to render a
// useful message without parsing the error string.
package kerr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel kinds. Use errors.Is(err, kerr.ErrIndexExists) etc. to classify.
var (
	ErrParse           = errors.New("parse error")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrCoercion        = errors.New("coercion error")
	ErrIDInvalid       = errors.New("invalid record id")
	ErrRecordExists    = errors.New("record already exists")
	ErrIndexExists     = errors.New("index conflict")
	ErrFieldCheck      = errors.New("field check failed")
	ErrPermission      = errors.New("permission denied")
	ErrTimeout         = errors.New("statement timed out")
	ErrCancelled       = errors.New("statement cancelled")
	ErrTxAborted       = errors.New("transaction aborted")
	ErrTxConflict      = errors.New("transaction conflict")
	ErrUnreachable     = errors.New("unreachable: internal bug")
	ErrFeatureDisabled = errors.New("feature not enabled")
	ErrNsNotFound      = errors.New("namespace not found")
	ErrDbNotFound      = errors.New("database not found")
	ErrTbNotFound      = errors.New("table not found")
	ErrIxNotFound      = errors.New("index not found")
	ErrFdNotFound      = errors.New("field not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrAccessNotFound  = errors.New("access method not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrThrown          = errors.New("thrown")
	ErrRecursionLimit  = errors.New("recursion limit exceeded")

	// ErrControlFlow is the marker kind for Return/Break/Continue signals
	// threaded through the evaluator as errors so they unwind cleanly
	// through ordinary Go call stacks. These are never logged as failures.
	ErrControlFlow = errors.New("control flow")
)

// Span locates an error in statement source text.
type Span struct {
	Start, End int
	Line, Col  int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Col)
}

// ParseErr wraps ErrParse with the offending span.
func ParseErr(span Span, msg string) error {
	return errors.WithDetail(errors.Mark(errors.Newf("%s", msg), ErrParse), span.String())
}

// RecursionLimitErr wraps ErrRecursionLimit with the innermost span.
func RecursionLimitErr(span Span) error {
	return errors.WithDetail(errors.Mark(errors.Newf("recursion limit exceeded at %s", span), ErrRecursionLimit), span.String())
}

// TypeMismatch reports a coercion/comparison site expecting one kind and
// finding another.
func TypeMismatch(expected, found string) error {
	return errors.Mark(errors.Newf("type mismatch: expected %s, found %s", expected, found), ErrTypeMismatch)
}

// IDInvalid reports a malformed record id.
func IDInvalid(reason string) error {
	return errors.Mark(errors.Newf("invalid record id: %s", reason), ErrIDInvalid)
}

// RecordExists reports a CREATE/INSERT collision with an existing record.
func RecordExists(thing string) error {
	return errors.Mark(errors.Newf("record already exists: %s", thing), ErrRecordExists)
}

// IndexExistsErr carries the fields spec.md §3 requires on a uniqueness
// conflict: the conflicting thing, the index name, and the offending value.
type IndexExistsErr struct {
	Thing, Index string
	Value        any
}

func (e *IndexExistsErr) Error() string {
	return fmt.Sprintf("index %s already contains value %v for %s", e.Index, e.Value, e.Thing)
}

// IndexExists builds a marked IndexExistsErr.
func IndexExists(thing, index string, value any) error {
	return errors.Mark(&IndexExistsErr{Thing: thing, Index: index, Value: value}, ErrIndexExists)
}

// FieldCheckFailed reports a field's ASSERT/type check rejecting a value.
func FieldCheckFailed(field, reason string) error {
	return errors.Mark(errors.Newf("field check failed on %q: %s", field, reason), ErrFieldCheck)
}

// PermissionDenied reports an IAM policy rejecting an action on a resource.
func PermissionDenied(resource, action string) error {
	return errors.Mark(errors.Newf("permission denied: %s on %s", action, resource), ErrPermission)
}

// NotFound builds one of the Ns/Db/Tb/Ix/Fd/User-not-found kinds.
func NotFound(kind error, name string) error {
	return errors.Mark(errors.Newf("%s: %s", kind, name), kind)
}

// Thrown wraps a user-level THROW expression's message.
func Thrown(msg string) error {
	return errors.Mark(errors.Newf("%s", msg), ErrThrown)
}

// ControlFlow signals.
type ControlFlowKind int

const (
	FlowReturn ControlFlowKind = iota
	FlowBreak
	FlowContinue
)

// ControlFlowErr carries a Return/Break/Continue signal and optional value.
type ControlFlowErr struct {
	Kind  ControlFlowKind
	Value any
}

func (e *ControlFlowErr) Error() string {
	switch e.Kind {
	case FlowReturn:
		return "return"
	case FlowBreak:
		return "break"
	default:
		return "continue"
	}
}

// ControlFlow builds a marked ControlFlowErr.
func ControlFlow(kind ControlFlowKind, value any) error {
	return errors.Mark(&ControlFlowErr{Kind: kind, Value: value}, ErrControlFlow)
}

// AsIndexExists extracts the *IndexExistsErr, if any, from err's chain.
func AsIndexExists(err error) (*IndexExistsErr, bool) {
	var ie *IndexExistsErr
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// AsControlFlow extracts the *ControlFlowErr, if any, from err's chain.
func AsControlFlow(err error) (*ControlFlowErr, bool) {
	var cf *ControlFlowErr
	if errors.As(err, &cf) {
		return cf, true
	}
	return nil, false
}
