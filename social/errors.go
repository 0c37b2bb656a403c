package social

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeProviderNotFound    = "social_provider_not_found"
	TextCodeInvalidState        = "social_invalid_state"
	TextCodeStateExpired        = "social_state_expired"
	TextCodeInvalidTicket       = "social_invalid_ticket"
	TextCodeInvalidRedirect     = "social_invalid_redirect"
	TextCodeInvalidToken        = "social_invalid_provider_token"
	TextCodeUpstreamUnavailable = "social_upstream_unavailable"
	TextCodeNoVerifiedEmail     = "social_no_verified_email"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("social provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid, tampered or replayed.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrInvalidTicket is returned when a signup ticket is invalid or expired.
var ErrInvalidTicket = errors.New("invalid signup ticket", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidTicket).
	WithCode(errors.CodeBadRequest)

// ErrInvalidRedirect is returned when a redirect target is neither a local
// path nor on an allowed origin.
var ErrInvalidRedirect = errors.New("redirect url not allowed", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidRedirect).
	WithCode(errors.CodeBadRequest)

// ErrInvalidProviderToken is returned when the provider rejects the token.
var ErrInvalidProviderToken = errors.New("invalid provider token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrUpstreamProviderUnavailable is returned on network failures, timeouts
// and provider 5xx responses.
var ErrUpstreamProviderUnavailable = errors.New("identity provider unavailable", errors.CategoryExternal).
	WithTextCode(TextCodeUpstreamUnavailable).
	WithCode(http.StatusBadGateway)

// ErrNoVerifiedEmail is returned when the provider has no verified email.
var ErrNoVerifiedEmail = errors.New("provider account has no verified email", errors.CategoryValidation).
	WithTextCode(TextCodeNoVerifiedEmail).
	WithCode(errors.CodeBadRequest)
