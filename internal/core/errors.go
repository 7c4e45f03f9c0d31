package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden operation")

	// ErrCalculation signals missing reference data for a computation.
	ErrCalculation = errors.New("calculation error")

	// ErrLocked is returned when a row is held by another transaction and the
	// caller asked not to wait for it.
	ErrLocked = errors.New("record locked")
)

// ErrInvalidState is a validation error: callers matching ErrValidation see it too.
var ErrInvalidState = fmt.Errorf("%w: invalid state transition", ErrValidation)

// ErrPolicySurrendered is returned by every mutating operation on a surrendered policy.
var ErrPolicySurrendered = fmt.Errorf("%w: policy is surrendered", ErrValidation)
