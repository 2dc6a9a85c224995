package raat

import (
	"errors"
	"fmt"
)

var (
	// ErrSubjectNotFound means the worker reference does not resolve within
	// the tenant.
	ErrSubjectNotFound = errors.New("subject worker not found")
	// ErrRecordNotFound means the incident or attachment does not exist in
	// the tenant.
	ErrRecordNotFound = errors.New("record not found")
	// ErrSequenceConflict surfaces an exhausted accident-number retry loop.
	// Retryable server condition, not a caller mistake.
	ErrSequenceConflict = errors.New("accident number allocation conflict")
)

// ValidationError reports a missing or malformed required field. Caller
// fixable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LockedError rejects a mutation on a terminal-lifecycle incident. Carries
// the current status so the caller can explain the lock without a second
// lookup.
type LockedError struct {
	Status string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("incident is read-only in status %q", e.Status)
}

// TransitionError rejects an illegal lifecycle change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition incident from %q to %q", e.From, e.To)
}

// AlreadySentError rejects a notification marked sent under a different
// reference than the one already recorded.
type AlreadySentError struct {
	ExistingRef string
}

func (e *AlreadySentError) Error() string {
	return fmt.Sprintf("notification already sent with reference %q", e.ExistingRef)
}
