package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/actionplan/internal/ir"
)

// ErrorKind categorizes action failures.
type ErrorKind string

const (
	// KindSchemaViolation indicates an input or output failed validation.
	KindSchemaViolation ErrorKind = "SCHEMA_VIOLATION"

	// KindPlanningError indicates a Plan hook failed.
	KindPlanningError ErrorKind = "PLANNING_ERROR"

	// KindExecutionError indicates the run phase failed, including
	// external task invocation and polling.
	KindExecutionError ErrorKind = "EXECUTION_ERROR"

	// KindFinalizeError indicates a Finalize hook failed.
	KindFinalizeError ErrorKind = "FINALIZE_ERROR"

	// KindCancelled marks actions that never ran because a dependency
	// failed or the plan was cancelled.
	KindCancelled ErrorKind = "CANCELLED"
)

// ActionError is the error recorded on an action.
//
// It stays queryable through Action.Err and Plan.Errors after the plan
// finishes.
type ActionError struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Phase is where the error happened.
	Phase ir.Phase

	// ActionID and Action identify the failed action.
	ActionID int64
	Action   string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s (action=%s#%d, phase=%s)", e.Kind, e.Message, e.Action, e.ActionID, e.Phase)
}

// Unwrap returns the underlying cause.
func (e *ActionError) Unwrap() error {
	return e.Err
}

func newActionError(kind ErrorKind, phase ir.Phase, a *Action, err error) *ActionError {
	return &ActionError{
		Kind:     kind,
		Phase:    phase,
		ActionID: a.id,
		Action:   a.def.Name,
		Message:  err.Error(),
		Err:      err,
	}
}

// Fail returns an explicit failure for hooks to return, the equivalent of
// raising from run or poll.
func Fail(format string, args ...any) error {
	return &FailureError{Message: fmt.Sprintf(format, args...)}
}

// FailureError is the explicit failure signal produced by Fail.
type FailureError struct {
	Message string
}

// Error implements the error interface.
func (e *FailureError) Error() string {
	return e.Message
}

// panicError wraps a recovered hook panic.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

func kindOf(err error) (ErrorKind, bool) {
	var ae *ActionError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsSchemaViolation returns true if err is an ActionError of kind SCHEMA_VIOLATION.
// Uses errors.As to handle wrapped errors.
func IsSchemaViolation(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindSchemaViolation
}

// IsPlanningError returns true if err is an ActionError of kind PLANNING_ERROR.
func IsPlanningError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindPlanningError
}

// IsExecutionError returns true if err is an ActionError of kind EXECUTION_ERROR.
func IsExecutionError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindExecutionError
}

// IsFinalizeError returns true if err is an ActionError of kind FINALIZE_ERROR.
func IsFinalizeError(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindFinalizeError
}

// IsCancelled returns true if err is an ActionError of kind CANCELLED.
func IsCancelled(err error) bool {
	k, ok := kindOf(err)
	return ok && k == KindCancelled
}

// IsFailure returns true if err was produced by Fail.
func IsFailure(err error) bool {
	var fe *FailureError
	return errors.As(err, &fe)
}

// UnknownActionError is returned when a plan names an unregistered kind.
type UnknownActionError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q", e.Name)
}

// IsUnknownAction returns true if err is an UnknownActionError.
func IsUnknownAction(err error) bool {
	var ue *UnknownActionError
	return errors.As(err, &ue)
}
