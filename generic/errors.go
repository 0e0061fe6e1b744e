/*
errors.go - Centralized error types for the day-off engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The dayoff package returns these (wrapped with context); the api
  package maps them to HTTP status codes.

ERROR CATEGORIES:
  1. Client errors - InsufficientBalance, InvalidRequest, ApproverNotConfigured
  2. Workflow errors - InvalidTransition, NotAuthorized
  3. Lookup errors - NotFound and its credit/request/user variants
  4. Commit errors - CommitFailed (writes were attempted and rolled back)

USAGE:
  if errors.Is(err, generic.ErrInsufficientBalance) {
      var ib *generic.InsufficientBalanceError
      errors.As(err, &ib) // ib.Shortfall
  }

SEE ALSO:
  - dayoff/service.go: Returns these errors
  - api/errors.go: Maps them to HTTP responses
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when the requested days exceed the
	// employee's available credit. Nothing has been written.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidRequest is returned for malformed input (non-positive days,
	// missing fields, unparseable dates).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrApproverNotConfigured is returned when the employee's section has no
	// team leader or manager. Administrative data gap: contact admin.
	ErrApproverNotConfigured = errors.New("approver not configured")

	// ErrInvalidTransition is returned when an approval/rejection does not
	// match the state machine.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrNotAuthorized is returned when the actor's role or relationship does
	// not allow the operation.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrNotFound is the parent of every lookup failure.
	ErrNotFound = errors.New("not found")

	ErrCreditNotFound  = fmt.Errorf("credit %w", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("day-off request %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)

	// ErrCreditInUse is returned when editing or deleting a credit that an
	// allocation has already drawn from.
	ErrCreditInUse = errors.New("credit already used by a request")

	// ErrCommitFailed is returned when a multi-step write failed after the
	// first write. The store rolled back; callers must not assume "nothing
	// happened" was validated.
	ErrCommitFailed = errors.New("commit failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	OwnerID   string
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s, shortfall %s",
		e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// ValidationError names the offending input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRequest
}

// TransitionError describes a rejected state-machine step. Authorization
// failures match both ErrNotAuthorized and ErrInvalidTransition; state
// failures match only ErrInvalidTransition.
type TransitionError struct {
	Actor     Actor
	Action    string
	From      string
	Forbidden bool
	Reason    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s request in status %s as %s: %s",
		e.Action, e.From, e.Actor.Role, e.Reason)
}

func (e *TransitionError) Unwrap() []error {
	if e.Forbidden {
		return []error{ErrNotAuthorized, ErrInvalidTransition}
	}
	return []error{ErrInvalidTransition}
}

// CommitError reports a failure inside the debit/persist sequence of a
// request. Applied lists the credit ids debited before the failure.
type CommitError struct {
	RequestID string
	Applied   []string
	Cause     error
}

func (e *CommitError) Error() string {
	msg := fmt.Sprintf("commit of request %s failed", e.RequestID)
	if len(e.Applied) > 0 {
		msg += fmt.Sprintf(" after debiting [%s]", strings.Join(e.Applied, ", "))
	}
	return msg + ": " + e.Cause.Error()
}

func (e *CommitError) Unwrap() []error {
	return []error{ErrCommitFailed, e.Cause}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	if errors.Is(err, ErrCommitFailed) {
		return false
	}
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrApproverNotConfigured) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden returns true if the actor may not perform the operation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotAuthorized)
}
