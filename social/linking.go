package social

import (
	"context"
	"strings"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/goliatone/go-errors"
)

// LinkRegistry enforces that a provider identity belongs to at most one
// organizer and that organizers never lose their last credential.
type LinkRegistry struct {
	store  auth.CredentialStore
	logger auth.Logger
}

// NewLinkRegistry creates a registry over store.
func NewLinkRegistry(store auth.CredentialStore, logger auth.Logger) *LinkRegistry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LinkRegistry{store: store, logger: logger}
}

// IdentityExists reports whether the identity belongs to an organizer and
// returns the owner. An organizer with the same email counts only when its
// link for the provider carries the same providerID.
func (r *LinkRegistry) IdentityExists(ctx context.Context, id Identity) (*auth.Organizer, bool, error) {
	owner, err := r.store.FindByProviderIdentity(ctx, id.Provider, id.ProviderID)
	if err == nil {
		return owner, true, nil
	}
	if !errors.Is(err, auth.ErrAccountNotFound) {
		return nil, false, err
	}

	if id.Email == "" {
		return nil, false, nil
	}

	org, err := r.store.FindByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, auth.ErrAccountNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	linked, ok := org.ProviderID(id.Provider)
	if !ok {
		return nil, false, nil
	}
	if linked != id.ProviderID {
		r.logger.Warn("provider id mismatch for email owner",
			"organizer_id", org.ID.String(),
			"provider", id.Provider,
		)
		return nil, false, nil
	}
	return org, true, nil
}

// Link attaches the provider identity to the organizer.
func (r *LinkRegistry) Link(ctx context.Context, organizerID string, provider auth.Provider, providerID string) (*auth.Organizer, error) {
	if err := validateProvider(provider, providerID); err != nil {
		return nil, err
	}

	org, err := r.store.FindByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	return r.attach(ctx, org, provider, providerID)
}

// attach is shared by Link and FindOrCreateBySocial.
func (r *LinkRegistry) attach(ctx context.Context, org *auth.Organizer, provider auth.Provider, providerID string) (*auth.Organizer, error) {
	if org.HasProvider(provider) {
		return nil, auth.ErrProviderAlreadyLinked
	}

	owner, err := r.store.FindByProviderIdentity(ctx, provider, providerID)
	switch {
	case err == nil && owner.ID != org.ID:
		return nil, auth.ErrProviderLinkedElsewhere
	case err != nil && !errors.Is(err, auth.ErrAccountNotFound):
		return nil, err
	}

	updated, err := r.store.AddProvider(ctx, org.ID.String(), provider, providerID)
	if err != nil {
		r.logger.Debug("link rejected by store", "organizer_id", org.ID.String(), "provider", provider, "error", err)
		return nil, err
	}
	return updated, nil
}

// Unlink removes the provider from the organizer. The store checks the
// credential count again under a row lock, so a concurrent unlink cannot
// leave the organizer without credentials.
func (r *LinkRegistry) Unlink(ctx context.Context, organizerID string, provider auth.Provider) (*auth.Organizer, error) {
	org, err := r.store.FindByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}

	if !org.HasProvider(provider) {
		return nil, auth.ErrProviderNotLinked
	}

	next := org.Clone()
	next.RemoveProvider(provider)
	if !next.HasCredentials() {
		return nil, auth.ErrLastAuthMethod
	}

	return r.store.RemoveProvider(ctx, org.ID.String(), provider)
}

// FindOrCreateBySocial resolves a directly exchanged provider token to an
// organizer. It links the provider to an existing account with the same
// email and creates an account when none exists.
func (r *LinkRegistry) FindOrCreateBySocial(ctx context.Context, id Identity) (*auth.Organizer, bool, error) {
	if err := validateIdentity(id); err != nil {
		return nil, false, err
	}

	owner, err := r.store.FindByProviderIdentity(ctx, id.Provider, id.ProviderID)
	if err == nil {
		if owner.Email != id.Email {
			return nil, false, auth.ErrProviderLinkedElsewhere
		}
		return owner, false, nil
	}
	if !errors.Is(err, auth.ErrAccountNotFound) {
		return nil, false, err
	}

	org, err := r.store.FindByEmail(ctx, id.Email)
	if err == nil {
		if linked, ok := org.ProviderID(id.Provider); ok && linked == id.ProviderID {
			return org, false, nil
		}
		updated, err := r.attach(ctx, org, id.Provider, id.ProviderID)
		return updated, false, err
	}
	if !errors.Is(err, auth.ErrAccountNotFound) {
		return nil, false, err
	}

	created, err := r.CreateWithIdentity(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// CreateWithIdentity creates an organizer whose only credential is the
// identity. A lost uniqueness race on the email reports ErrConflict.
func (r *LinkRegistry) CreateWithIdentity(ctx context.Context, id Identity) (*auth.Organizer, error) {
	if err := validateIdentity(id); err != nil {
		return nil, err
	}

	org := auth.NewOrganizer(id.Email)
	org.AddProvider(id.Provider, id.ProviderID)

	created, err := r.store.Insert(ctx, org)
	if err != nil {
		if errors.Is(err, auth.ErrEmailAlreadyRegistered) {
			return nil, auth.ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func validateProvider(provider auth.Provider, providerID string) error {
	if !auth.IsSupportedProvider(provider) {
		return ErrProviderNotFound
	}
	if strings.TrimSpace(providerID) == "" {
		return ErrInvalidProviderToken
	}
	return nil
}

func validateIdentity(id Identity) error {
	if err := validateProvider(id.Provider, id.ProviderID); err != nil {
		return err
	}
	if id.Email == "" {
		return ErrNoVerifiedEmail
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
