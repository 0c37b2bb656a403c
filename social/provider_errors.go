package social

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// ProviderError captures normalized provider response details.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	} else if e.Operation != "" {
		scope = e.Operation
	}

	if e.Description != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s failed: status %d", scope, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WrapProviderError joins a sentinel with provider details. errors.Is
// matches the sentinel and errors.As finds the *ProviderError.
func WrapProviderError(base *goerrors.Error, perr *ProviderError) error {
	if base == nil {
		return perr
	}
	if perr == nil {
		return base
	}
	return fmt.Errorf("%w: %w", base, perr)
}

// ClassifyStatus maps a provider HTTP status to a sentinel. 4xx means the
// token was rejected, anything else non 2xx means the provider is unavailable.
func ClassifyStatus(status int) *goerrors.Error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 400 && status < 500:
		return ErrInvalidProviderToken
	default:
		return ErrUpstreamProviderUnavailable
	}
}

// TransportError wraps a failed request as an upstream failure.
func TransportError(provider, operation string, err error) error {
	return WrapProviderError(ErrUpstreamProviderUnavailable, &ProviderError{
		Provider:  provider,
		Operation: operation,
		Err:       err,
	})
}

// StatusError wraps a non 2xx provider response.
func StatusError(provider, operation string, status int, description string) error {
	return WrapProviderError(ClassifyStatus(status), &ProviderError{
		Provider:    provider,
		Operation:   operation,
		Status:      status,
		Description: description,
	})
}

// ProviderDetails returns the provider details carried by err, if any.
func ProviderDetails(err error) (*ProviderError, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		return perr, true
	}
	return nil, false
}
