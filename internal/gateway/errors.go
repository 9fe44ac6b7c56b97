package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies gateway failures so the orchestrator can decide
// retry-ability.
type ErrorKind string

const (
	// KindUnavailable covers network failures, timeouts, 5xx responses and
	// missing configuration. Safe to retry with backoff.
	KindUnavailable ErrorKind = "unavailable"
	// KindAmountRejected means the gateway (or the local floor check)
	// refused the requested amount. Not retryable as-is.
	KindAmountRejected ErrorKind = "amount_rejected"
	// KindUnknown is everything else.
	KindUnknown ErrorKind = "unknown"
)

// Error is a structured gateway failure.
type Error struct {
	Kind        ErrorKind
	HTTPStatus  int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("gateway %s: %s", e.Kind, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("gateway %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a retryable gateway failure.
func IsUnavailable(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindUnavailable
}

// IsAmountRejected reports whether err was an amount rejection.
func IsAmountRejected(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindAmountRejected
}
