package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrLockNotAcquired    = errors.New("lock not acquired")

	// Reconciliation errors
	ErrSignatureInvalid   = errors.New("signature invalid")
	ErrUnknownRefund      = errors.New("unknown refund")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrPaymentNotVerified = errors.New("payment not verified")
	ErrAmountMismatch     = errors.New("amount mismatch")
	ErrRefundInFlight     = errors.New("another refund for this payment is being initiated")
)

// ValidationError reports a malformed or out-of-range input.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidArgument }

// IllegalTransitionError carries the rejected from/to pair of a status change.
type IllegalTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
	Reason string
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("illegal %s transition %s -> %s (id=%s)", e.Entity, e.From, e.To, e.ID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }
