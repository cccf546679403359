package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProvider         = errors.New("provider_error")
	ErrCustomerNotFound = errors.New("customer_not_found")
	ErrQuoteNotFound    = errors.New("quote_not_found")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
)

// ProviderError carries the provider's own message for a failed call.
type ProviderError struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Message == "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}
	return []error{ErrProvider, e.Err}
}
