package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Provider identifies an external identity issuer
type Provider = string

const (
	// ProviderGoogle is Google sign-in
	ProviderGoogle Provider = "google"
	// ProviderGitHub is GitHub sign-in
	ProviderGitHub Provider = "github"
)

// AuthMethodPassword is reported for organizers with a password hash.
const AuthMethodPassword = "password"

// IsSupportedProvider reports whether the provider is known to this package.
func IsSupportedProvider(p string) bool {
	switch p {
	case ProviderGoogle, ProviderGitHub:
		return true
	default:
		return false
	}
}

// Organizer is the account entity
type Organizer struct {
	bun.BaseModel   `bun:"table:organizers,alias:org"`
	ID              uuid.UUID            `bun:"id,pk" json:"id"`
	Email           string               `bun:"email,notnull" json:"email"`
	PasswordHash    string               `bun:"password_hash,nullzero" json:"-"`
	SocialProviders []*OrganizerProvider `bun:"rel:has-many,join:id=organizer_id" json:"social_providers"`
	CreatedAt       time.Time            `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time            `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// OrganizerProvider links one provider identity to an organizer
type OrganizerProvider struct {
	bun.BaseModel `bun:"table:organizer_providers,alias:orgp"`
	ID            uuid.UUID `bun:"id,pk" json:"-"`
	OrganizerID   uuid.UUID `bun:"organizer_id,notnull" json:"-"`
	Provider      Provider  `bun:"provider,notnull" json:"provider"`
	ProviderID    string    `bun:"provider_id,notnull" json:"provider_id"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// NewOrganizer builds an organizer with a fresh id.
func NewOrganizer(email string) *Organizer {
	now := time.Now().UTC()
	return &Organizer{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NormalizeEmail lowercases and trims an address so lookups and the unique
// constraint agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether password login is enabled.
func (o *Organizer) HasPassword() bool {
	return o != nil && o.PasswordHash != ""
}

// HasProvider reports whether the provider is linked.
func (o *Organizer) HasProvider(provider Provider) bool {
	_, ok := o.ProviderID(provider)
	return ok
}

// ProviderID returns the linked subject id for the provider.
func (o *Organizer) ProviderID(provider Provider) (string, bool) {
	if o == nil {
		return "", false
	}
	for _, p := range o.SocialProviders {
		if p != nil && p.Provider == provider {
			return p.ProviderID, true
		}
	}
	return "", false
}

// AddProvider appends a provider identity. It does not check for duplicates.
func (o *Organizer) AddProvider(provider Provider, providerID string) *OrganizerProvider {
	link := &OrganizerProvider{
		ID:          uuid.New(),
		OrganizerID: o.ID,
		Provider:    provider,
		ProviderID:  providerID,
		CreatedAt:   time.Now().UTC(),
	}
	o.SocialProviders = append(o.SocialProviders, link)
	return link
}

// RemoveProvider drops the provider identity and reports whether it was present.
func (o *Organizer) RemoveProvider(provider Provider) bool {
	out := o.SocialProviders[:0]
	removed := false
	for _, p := range o.SocialProviders {
		if p != nil && p.Provider == provider {
			removed = true
			continue
		}
		out = append(out, p)
	}
	o.SocialProviders = out
	return removed
}

// HasCredentials is the account invariant: a password or at least one provider.
func (o *Organizer) HasCredentials() bool {
	return o.HasPassword() || len(o.SocialProviders) > 0
}

// AuthMethods lists the login methods enabled for the organizer.
func (o *Organizer) AuthMethods() []string {
	methods := make([]string, 0, len(o.SocialProviders)+1)
	if o.HasPassword() {
		methods = append(methods, AuthMethodPassword)
	}
	for _, p := range o.SocialProviders {
		methods = append(methods, p.Provider)
	}
	return methods
}

// Clone returns a copy whose provider slice can be modified independently.
func (o *Organizer) Clone() *Organizer {
	if o == nil {
		return nil
	}
	c := *o
	c.SocialProviders = make([]*OrganizerProvider, 0, len(o.SocialProviders))
	for _, p := range o.SocialProviders {
		cp := *p
		c.SocialProviders = append(c.SocialProviders, &cp)
	}
	return &c
}

// Session is an issued session token
type Session struct {
	Token       string    `json:"token"`
	OrganizerID string    `json:"organizer_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OrganizerSummary is returned after signup
type OrganizerSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkedProvider is a provider identity in a profile response
type LinkedProvider struct {
	Provider   Provider  `json:"provider"`
	ProviderID string    `json:"provider_id"`
	LinkedAt   time.Time `json:"linked_at"`
}

// FullProfile describes an organizer and its credentials
type FullProfile struct {
	ID              string           `json:"id"`
	Email           string           `json:"email"`
	CreatedAt       time.Time        `json:"created_at"`
	AuthMethods     []string         `json:"auth_methods"`
	SocialProviders []LinkedProvider `json:"social_providers"`
}

// DeletionReport counts what an account deletion removed
type DeletionReport struct {
	DeletedServices     int `json:"deleted_services"`
	DeletedParticipants int `json:"deleted_participants"`
}

// Summary returns the public summary of the organizer.
func (o *Organizer) Summary() *OrganizerSummary {
	return &OrganizerSummary{
		ID:        o.ID.String(),
		Email:     o.Email,
		CreatedAt: o.CreatedAt,
	}
}

// Profile returns the full profile of the organizer.
func (o *Organizer) Profile() *FullProfile {
	providers := make([]LinkedProvider, 0, len(o.SocialProviders))
	for _, p := range o.SocialProviders {
		providers = append(providers, LinkedProvider{
			Provider:   p.Provider,
			ProviderID: p.ProviderID,
			LinkedAt:   p.CreatedAt,
		})
	}
	return &FullProfile{
		ID:              o.ID.String(),
		Email:           o.Email,
		CreatedAt:       o.CreatedAt,
		AuthMethods:     o.AuthMethods(),
		SocialProviders: providers,
	}
}
