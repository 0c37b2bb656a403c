package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/KyungBin7/waitrush-sub000/social"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	defaultUserURL   = "https://api.github.com/user"
	defaultEmailsURL = "https://api.github.com/user/emails"
)

// Config holds GitHub OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL   string
	TokenURL  string
	UserURL   string
	EmailsURL string

	HTTPClient *http.Client
	Timeout    time.Duration
}

// DefaultScopes returns the default GitHub scopes.
func DefaultScopes() []string {
	return []string{"user:email", "read:user"}
}

// Provider implements social.ProviderVerifier for GitHub.
type Provider struct {
	config     Config
	oauth      *oauth2.Config
	httpClient *http.Client
}

// New creates a new GitHub provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.UserURL == "" {
		cfg.UserURL = defaultUserURL
	}
	if cfg.EmailsURL == "" {
		cfg.EmailsURL = defaultEmailsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	endpoint := endpoints.GitHub
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &Provider{
		config: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		httpClient: client,
	}
}

// Name implements social.ProviderVerifier.
func (p *Provider) Name() string {
	return auth.ProviderGitHub
}

// AuthCodeURL implements social.ProviderVerifier.
func (p *Provider) AuthCodeURL(state, codeChallenge string) string {
	var opts []oauth2.AuthCodeOption
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// Exchange implements social.ProviderVerifier and returns the access token.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := p.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			desc := rerr.ErrorDescription
			if desc == "" {
				desc = rerr.ErrorCode
			}
			return "", social.StatusError(auth.ProviderGitHub, "exchange", rerr.Response.StatusCode, desc)
		}
		return "", social.TransportError(auth.ProviderGitHub, "exchange", err)
	}
	if tok.AccessToken == "" {
		return "", social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGitHub,
			Operation:   "exchange",
			Description: "missing access token",
		})
	}
	return tok.AccessToken, nil
}

// Verify implements social.ProviderVerifier. When the profile has no public
// email the primary verified address is taken from the emails endpoint.
func (p *Provider) Verify(ctx context.Context, token string) (social.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGitHub,
			Operation:   "verify",
			Description: "empty token",
		})
	}

	user, err := p.fetchUser(ctx, token)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(user.Email)
	if email == "" {
		email, err = p.fetchPrimaryEmail(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	return mapProfile(user, email), nil
}

func (p *Provider) fetchUser(ctx context.Context, accessToken string) (*githubUser, error) {
	body, err := p.get(ctx, "user", p.config.UserURL, accessToken)
	if err != nil {
		return nil, err
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, social.TransportError(auth.ProviderGitHub, "user", fmt.Errorf("decode user: %w", err))
	}
	if user.ID == 0 {
		return nil, social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGitHub,
			Operation:   "user",
			Description: "profile has no id",
		})
	}
	return &user, nil
}

func (p *Provider) fetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	body, err := p.get(ctx, "emails", p.config.EmailsURL, accessToken)
	if err != nil {
		return "", err
	}

	var emails []githubEmail
	if err := json.Unmarshal(body, &emails); err != nil {
		return "", social.TransportError(auth.ProviderGitHub, "emails", fmt.Errorf("decode emails: %w", err))
	}

	for _, e := range emails {
		if e.Primary && e.Verified && strings.TrimSpace(e.Email) != "" {
			return e.Email, nil
		}
	}

	return "", social.WrapProviderError(social.ErrNoVerifiedEmail, &social.ProviderError{
		Provider:    auth.ProviderGitHub,
		Operation:   "emails",
		Description: "no primary verified email",
	})
}

func (p *Provider) get(ctx context.Context, operation, endpoint, accessToken string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, social.TransportError(auth.ProviderGitHub, operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, social.TransportError(auth.ProviderGitHub, operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, social.TransportError(auth.ProviderGitHub, operation, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, social.StatusError(auth.ProviderGitHub, operation, resp.StatusCode, apiErrorMessage(body))
	}
	return body, nil
}

func apiErrorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(body))
}
