package generator

import (
	"errors"
	"fmt"
)

// Reason classifies why a generation did not complete.
type Reason string

const (
	ReasonUnauthorized       Reason = "unauthorized"
	ReasonMissingImage       Reason = "missing_image"
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonTransport          Reason = "transport_failure"
	ReasonProviderError      Reason = "provider_error"
	ReasonMalformedResponse  Reason = "malformed_response"
	ReasonItemNotFound       Reason = "item_not_found"
	ReasonStoreFailure       Reason = "store_failure"
	ReasonMissingCategory    Reason = "missing_category"
	ReasonInvalidConfig      Reason = "invalid_config"

	// ReasonPartialSuccess is informational: some fields were absent.
	ReasonPartialSuccess Reason = "partial_success"
)

// Retryable reports whether re-running the same item later may succeed.
func (r Reason) Retryable() bool {
	return r == ReasonTransport
}

// Error carries a Reason across package boundaries.
type Error struct {
	Reason  Reason
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// ReasonOf extracts the Reason from err, or "" if err carries none.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
