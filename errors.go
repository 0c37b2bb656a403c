package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials      = "AUTH_INVALID_CREDENTIALS"
	TextCodeEmailAlreadyRegistered  = "AUTH_EMAIL_ALREADY_REGISTERED"
	TextCodeProviderAlreadyLinked   = "AUTH_PROVIDER_ALREADY_LINKED"
	TextCodeProviderLinkedElsewhere = "AUTH_PROVIDER_LINKED_ELSEWHERE"
	TextCodeProviderNotLinked       = "AUTH_PROVIDER_NOT_LINKED"
	TextCodeLastAuthMethod          = "AUTH_LAST_AUTH_METHOD"
	TextCodeAccountNotFound         = "AUTH_ACCOUNT_NOT_FOUND"
	TextCodeConflict                = "AUTH_CONFLICT"
	TextCodeInvalidSession          = "AUTH_INVALID_SESSION"
	TextCodeSessionExpired          = "AUTH_SESSION_EXPIRED"
	TextCodeInvalidPassword         = "AUTH_INVALID_PASSWORD"
	TextCodeInternal                = "AUTH_INTERNAL"
)

// ErrInvalidCredentials covers unknown emails, wrong passwords and
// accounts without a password. Callers cannot tell them apart.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailAlreadyRegistered is returned when signup hits an existing email.
var ErrEmailAlreadyRegistered = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailAlreadyRegistered).
	WithCode(errors.CodeConflict)

// ErrProviderAlreadyLinked is returned when the organizer already has the provider.
var ErrProviderAlreadyLinked = errors.New("provider already linked to this account", errors.CategoryConflict).
	WithTextCode(TextCodeProviderAlreadyLinked).
	WithCode(errors.CodeConflict)

// ErrProviderLinkedElsewhere is returned when another organizer owns the
// provider identity.
var ErrProviderLinkedElsewhere = errors.New("provider identity linked to another account", errors.CategoryConflict).
	WithTextCode(TextCodeProviderLinkedElsewhere).
	WithCode(errors.CodeConflict)

// ErrProviderNotLinked is returned when unlinking a provider that is not present.
var ErrProviderNotLinked = errors.New("provider not linked", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotLinked).
	WithCode(errors.CodeNotFound)

// ErrLastAuthMethod is returned when a change would leave the organizer
// without a password and without providers.
var ErrLastAuthMethod = errors.New("account must keep at least one authentication method", errors.CategoryValidation).
	WithTextCode(TextCodeLastAuthMethod).
	WithCode(errors.CodeBadRequest)

// ErrAccountNotFound is returned when the organizer does not exist.
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrConflict is returned when a concurrent write won a uniqueness race.
var ErrConflict = errors.New("account already exists", errors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(errors.CodeConflict)

// ErrInvalidSession is returned for malformed, forged or orphaned tokens.
var ErrInvalidSession = errors.New("invalid session", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidSession).
	WithCode(errors.CodeUnauthorized)

// ErrSessionExpired is returned for well formed tokens past their expiry.
var ErrSessionExpired = errors.New("session expired", errors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidPassword is returned when a password cannot be hashed.
var ErrInvalidPassword = errors.New("password must be between 1 and 72 bytes", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPassword).
	WithCode(errors.CodeBadRequest)

// internalError wraps unexpected failures so they render as 500 without
// leaking details.
func internalError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(TextCodeInternal).
		WithCode(errors.CodeInternal)
}

// isUniqueViolation detects unique constraint failures from SQLite and Postgres.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "23505") ||
		strings.Contains(strings.ToLower(msg), "duplicate key")
}
