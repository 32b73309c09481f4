// Package providers defines the shared error contract for external
// collaborator clients (commerce platform, messaging provider).
package providers

import (
	"errors"
	"fmt"
)

// ProviderError is a structured failure from an external API. Transient
// errors (timeouts, 429, 5xx) are eligible for retry; permanent ones
// (invalid phone number, rejected template) are not.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var providerErr *ProviderError

	return errors.As(err, &providerErr) && providerErr.Transient
}
