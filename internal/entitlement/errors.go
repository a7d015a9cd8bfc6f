// Package entitlement decides who may use what: product access grants and
// the error taxonomy shared by checkout and the attempt quota.
package entitlement

import "errors"

// Domain errors surfaced to API callers.
var (
	// ErrNotFound means a product, order, mock test, or attempt does not exist for the caller.
	ErrNotFound = errors.New("not found")
	// ErrRegistrationRequired means the user has not registered for the mock test.
	ErrRegistrationRequired = errors.New("registration required")
	// ErrAttemptsExhausted means the free attempt quota is used up.
	ErrAttemptsExhausted = errors.New("attempts exhausted")
	// ErrPaymentRequired means a payable purchase has no verified payment.
	ErrPaymentRequired = errors.New("payment required")
	// ErrPaymentVerificationFailed means the gateway signature did not match.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")
	// ErrValidation means the request input is malformed.
	ErrValidation = errors.New("validation error")
)

// AttemptsExhaustedError carries where the caller should send the user to buy access.
type AttemptsExhaustedError struct {
	RedirectURL string
}

func (e *AttemptsExhaustedError) Error() string {
	return ErrAttemptsExhausted.Error()
}

// Is lets errors.Is match ErrAttemptsExhausted.
func (e *AttemptsExhaustedError) Is(target error) bool {
	return target == ErrAttemptsExhausted
}

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
