package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain layer operations.
var (
	// ErrNotFound indicates that a requested entity was not found
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidationFailed indicates that validation checks have failed
	ErrValidationFailed = errors.New("validation failed")

	// ErrNoChannelsAllowed indicates that preference resolution produced an
	// empty channel set. Callers must treat this as a rejected request, not
	// a silent no-op.
	ErrNoChannelsAllowed = errors.New("no channels allowed by user preferences")

	// ErrTemplateNotFound indicates that the referenced template id does not exist
	ErrTemplateNotFound = errors.New("template not found")

	// ErrAlreadySent indicates an attempt to cancel a notification that has
	// already been accepted by a provider (status SENT or DELIVERED).
	ErrAlreadySent = errors.New("notification already sent")

	// ErrNotResendable indicates a resend request for a notification whose
	// status is not FAILED. Only failed notifications may be resent.
	ErrNotResendable = errors.New("only failed notifications can be resent")
)

// ValidationError represents a validation error with detailed field information.
// It implements the error interface and provides context about which field failed validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns a formatted error message for the validation error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// StateTransitionError reports a delivery state machine violation, carrying
// the attempted transition so callers can log or map it to an API error.
type StateTransitionError struct {
	From Status
	To   Status
}

// Error returns a formatted error message for the state transition error.
func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from '%s' to '%s'", e.From, e.To)
}
