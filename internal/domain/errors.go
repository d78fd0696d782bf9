package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrSeatUnavailable       = errors.New("seat is not available")
	ErrInvalidState          = errors.New("invalid booking state")
	ErrFlightDeparted        = errors.New("flight has already departed")
	ErrConfirmationCollision = errors.New("confirmation number collision")
	ErrPersistenceFailure    = errors.New("persistence failure")
	ErrUpstreamUnavailable   = errors.New("upstream unavailable")
)

// PaymentDeclinedError is an expected business outcome, not a system fault.
type PaymentDeclinedError struct {
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined: %s", e.Reason)
}

// CheckInNotOpenError carries the moment the check-in window opens so the
// caller can tell the user when to come back.
type CheckInNotOpenError struct {
	OpensAt time.Time
}

func (e *CheckInNotOpenError) Error() string {
	return fmt.Sprintf("check-in opens at %s", e.OpensAt.Format(time.RFC3339))
}
