// Package errors defines the error taxonomy shared by the storefront core.
package errors

import (
	"errors"
	"fmt"
)

var ErrValidation = errors.New("validation error")

var ErrAuthExpired = errors.New("authentication expired")
var ErrUnauthenticated = errors.New("request is unauthenticated")
var ErrForbidden = errors.New("access denied")
var ErrSessionEnded = errors.New("session ended")

var ErrNetwork = errors.New("network error")
var ErrBackendRejected = errors.New("backend rejected the request")

var ErrEmptyCart = errors.New("cart is empty")
var ErrPaymentDeclined = errors.New("payment declined")
var ErrOrderInProgress = errors.New("an order is already being placed")

var ErrUnknownStatus = errors.New("unknown order status")
var ErrOrderNotFound = errors.New("order not found")
var ErrItemNotFound = errors.New("cart item not found")

// BackendError is a non-401 error answer from the backend.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected the request: status %d", e.Status)
	}
	return fmt.Sprintf("backend rejected the request: status %d: %s", e.Status, e.Message)
}

func (e *BackendError) Unwrap() error {
	return ErrBackendRejected
}

// Validation wraps ErrValidation with a message about the offending input.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrValidation)
}
