package social

import (
	"context"

	auth "github.com/KyungBin7/waitrush-sub000"
)

// ProviderVerifier exchanges provider tokens for verified profiles. It also
// drives the authorization code redirect.
type ProviderVerifier interface {
	// Name returns the provider identifier ("google", "github").
	Name() string

	// Verify calls the provider API with token and returns the profile it
	// asserts.
	Verify(ctx context.Context, token string) (Profile, error)

	// AuthCodeURL returns the URL to redirect users for authorization.
	// codeChallenge is the S256 PKCE challenge.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades an authorization code for a token Verify accepts.
	Exchange(ctx context.Context, code, codeVerifier string) (string, error)
}

// Identity is the canonical provider identity of a profile
type Identity struct {
	Provider   auth.Provider
	ProviderID string
	Email      string
}

// Profile is implemented by *GoogleProfile and *GitHubProfile.
type Profile interface {
	Provider() auth.Provider
	Identity() Identity
	Hints() map[string]string
}

// GoogleProfile is the verified Google account
type GoogleProfile struct {
	Email      string
	ProviderID string
	Name       string
	Picture    string
}

func (p *GoogleProfile) Provider() auth.Provider { return auth.ProviderGoogle }

func (p *GoogleProfile) Identity() Identity {
	return Identity{
		Provider:   auth.ProviderGoogle,
		ProviderID: p.ProviderID,
		Email:      auth.NormalizeEmail(p.Email),
	}
}

func (p *GoogleProfile) Hints() map[string]string {
	return compactHints(map[string]string{
		"name":    p.Name,
		"picture": p.Picture,
	})
}

// GitHubProfile is the verified GitHub account
type GitHubProfile struct {
	Email      string
	ProviderID string
	Username   string
	Name       string
	AvatarURL  string
}

func (p *GitHubProfile) Provider() auth.Provider { return auth.ProviderGitHub }

func (p *GitHubProfile) Identity() Identity {
	return Identity{
		Provider:   auth.ProviderGitHub,
		ProviderID: p.ProviderID,
		Email:      auth.NormalizeEmail(p.Email),
	}
}

func (p *GitHubProfile) Hints() map[string]string {
	return compactHints(map[string]string{
		"username":   p.Username,
		"name":       p.Name,
		"avatar_url": p.AvatarURL,
	})
}

func compactHints(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

var (
	_ Profile = (*GoogleProfile)(nil)
	_ Profile = (*GitHubProfile)(nil)
)
