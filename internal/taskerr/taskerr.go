// Package taskerr defines the closed set of error kinds the runner uses to
// decide whether a failure is retried in place or reified as a terminal
// task status.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for disposition purposes. Every Kind maps to
// exactly one row in the error-handling table: retry transparently
// (RateLimit, Transient), retry once with a corrective prompt
// (ParseFailure), or terminate the task (everything else).
type Kind string

const (
	KindRateLimit         Kind = "rate_limit"
	KindTransient         Kind = "transient"
	KindAuth              Kind = "auth"
	KindParseFailure      Kind = "parse_failure"
	KindStagnation        Kind = "stagnated"
	KindBudgetExhausted   Kind = "budget"
	KindCancelled         Kind = "cancelled"
	KindInvalidIdentifier Kind = "invalid_identifier"
	KindTaskBusy          Kind = "task_busy"
	KindStorageCorruption Kind = "storage_corruption"
	KindNotFound          Kind = "not_found"
)

// Error is a task-runner error carrying a disposition Kind and the reason
// text recorded in final_result.json. It wraps an underlying cause when one
// exists so callers can still errors.Is/errors.As through to it.
type Error struct {
	Kind   Kind
	Reason string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, taskerr.New(kind, "")) to match on Kind alone.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// New builds an Error with no underlying cause.
func New(kind Kind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Wrap builds an Error that carries cause as its Unwrap target.
func Wrap(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Cause: cause}
}

// KindOf returns the Kind of err if it is (or wraps) a *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// InvalidIdentifier is a convenience constructor for the path-safety
// violations store and repo packages raise on unsafe caller-supplied path
// components (cache keys, repo names): any value containing "/", "\", or
// "..".
func InvalidIdentifier(field, value string) *Error {
	return New(KindInvalidIdentifier, fmt.Sprintf("%s contains unsafe path component: %q", field, value))
}

// TaskBusy is raised when a per-task lock is already held.
func TaskBusy(taskID string) *Error {
	return New(KindTaskBusy, fmt.Sprintf("task %s is locked by another process", taskID))
}

// NotFound is raised when a lookup by id (task, condition) has no record.
func NotFound(kind, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %s not found", kind, id))
}

// StorageCorruption wraps a persisted-state parse failure with the path it
// came from.
func StorageCorruption(path string, cause error) *Error {
	return Wrap(KindStorageCorruption, fmt.Sprintf("corrupted state at %s", path), cause)
}
