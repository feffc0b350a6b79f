package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrSlotConflict        = errors.New("slot is not available, please pick another slot")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrVersionConflict     = errors.New("appointment was modified concurrently")
	ErrAppointmentBusy     = errors.New("appointment is being updated, please retry")
	ErrTokenTaken          = errors.New("token already used by this doctor")
	ErrTokenExhausted      = errors.New("could not generate a unique token")
)

// ValidationError reports a missing or malformed input field. It matches
// ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func required(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

// TransitionError reports a lifecycle command the current status does not
// allow. It matches ErrInvalidTransition.
type TransitionError struct {
	From   Status
	Action string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s an appointment that is %s", e.Action, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
