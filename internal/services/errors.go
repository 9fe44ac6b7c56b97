package services

import (
	"errors"
	"fmt"
)

// Storage-level sentinels. Store implementations translate driver errors
// (mongo.ErrNoDocuments, duplicate key) into these.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// ErrSignatureMismatch is a security-relevant rejection: the request is
// dropped with zero side effects.
var ErrSignatureMismatch = errors.New("signature verification failed")

// ValidationError rejects bad input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InvariantViolationError marks a payment the engine cannot finish on its
// own: fatal for that payment id, surfaced to the operator queue, and never
// swallowed into a 2xx so gateway retries are preserved.
type InvariantViolationError struct {
	GatewayPaymentID string
	Reason           string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation for payment %s: %s", e.GatewayPaymentID, e.Reason)
}

// IsInvariantViolation reports whether err is an InvariantViolationError.
func IsInvariantViolation(err error) bool {
	var ive *InvariantViolationError
	return errors.As(err, &ive)
}
