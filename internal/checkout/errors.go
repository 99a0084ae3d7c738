package checkout

import (
	"errors"
	"fmt"

	"thriftstore/internal/models"
)

var (
	ErrInvalidSignature   = errors.New("invalid payment signature")
	ErrOrderNotFound      = errors.New("order not found")
	ErrForbidden          = errors.New("not authorized")
	ErrPaymentInProgress  = errors.New("payment verification already in progress")
	ErrPaymentAlreadyUsed = errors.New("payment already used for another order")
	ErrConcurrentUpdate   = errors.New("order was modified concurrently, retry")
)

// ValidationError reports a missing or malformed checkout field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// GatewayError wraps a failed call to the payment provider.
type GatewayError struct {
	Err error
}

func (e *GatewayError) Error() string {
	return "payment gateway error: " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PersistenceError is a failed write after the payment was verified. The
// caller can resubmit the same confirmation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransitionError is a refused order status change.
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	if e.To == models.OrderStatusCancelled && (e.From == models.OrderStatusShipped || e.From == models.OrderStatusDelivered) {
		return "cannot cancel shipped or delivered orders"
	}
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}
