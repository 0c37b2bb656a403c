package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/KyungBin7/waitrush-sub000/social"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Config holds Google OAuth configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	AuthURL      string
	TokenURL     string
	TokenInfoURL string

	HTTPClient *http.Client
	Timeout    time.Duration
}

// DefaultScopes returns the default Google scopes.
func DefaultScopes() []string {
	return []string{"openid", "email", "profile"}
}

// Provider implements social.ProviderVerifier for Google.
type Provider struct {
	config     Config
	oauth      *oauth2.Config
	httpClient *http.Client
}

// New creates a new Google provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	if cfg.TokenInfoURL == "" {
		cfg.TokenInfoURL = defaultTokenInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	endpoint := endpoints.Google
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
	return auth.ProviderGoogle
}

// AuthCodeURL implements social.ProviderVerifier.
func (p *Provider) AuthCodeURL(state, codeChallenge string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	if codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return p.oauth.AuthCodeURL(state, opts...)
}

// Exchange implements social.ProviderVerifier. It returns the ID token,
// which is what Verify checks against the token info endpoint.
func (p *Provider) Exchange(ctx context.Context, code, codeVerifier string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := p.oauth.Exchange(ctx, code, opts...)
	if err != nil {
		return "", exchangeError(err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	if idToken == "" {
		return "", social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGoogle,
			Operation:   "exchange",
			Description: "missing id_token",
		})
	}
	return idToken, nil
}

// Verify implements social.ProviderVerifier. The token is checked as an ID
// token first. When the token info endpoint rejects it, it is retried as an
// access token, which is what mobile clients usually hold.
func (p *Provider) Verify(ctx context.Context, token string) (social.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGoogle,
			Operation:   "verify",
			Description: "empty token",
		})
	}

	info, status, err := p.lookup(ctx, "id_token", token)
	if status == http.StatusBadRequest {
		info, status, err = p.lookup(ctx, "access_token", token)
	}
	if err != nil {
		return nil, err
	}

	if info.Sub == "" {
		return nil, social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGoogle,
			Operation:   "verify",
			Status:      status,
			Description: "token has no subject",
		})
	}

	if p.config.ClientID != "" && info.audience() != p.config.ClientID {
		return nil, social.WrapProviderError(social.ErrInvalidProviderToken, &social.ProviderError{
			Provider:    auth.ProviderGoogle,
			Operation:   "verify",
			Status:      status,
			Description: "audience mismatch",
		})
	}

	if strings.TrimSpace(info.Email) == "" || (info.EmailVerified.set && !info.EmailVerified.value) {
		return nil, social.WrapProviderError(social.ErrNoVerifiedEmail, &social.ProviderError{
			Provider:  auth.ProviderGoogle,
			Operation: "verify",
		})
	}

	return mapProfile(info), nil
}

// lookup asks the token info endpoint about token, sent as param. The
// returned status is zero when the request never got a response.
func (p *Provider) lookup(ctx context.Context, param, token string) (*tokenInfo, int, error) {
	endpoint := p.config.TokenInfoURL + "?" + url.Values{param: {token}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, social.TransportError(auth.ProviderGoogle, "verify", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, social.TransportError(auth.ProviderGoogle, "verify", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, social.TransportError(auth.ProviderGoogle, "verify", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, social.StatusError(auth.ProviderGoogle, "verify", resp.StatusCode, parseGoogleError(body))
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, resp.StatusCode, social.TransportError(auth.ProviderGoogle, "verify", fmt.Errorf("decode tokeninfo: %w", err))
	}
	return &info, resp.StatusCode, nil
}

func exchangeError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		desc := rerr.ErrorDescription
		if desc == "" {
			desc = rerr.ErrorCode
		}
		return social.StatusError(auth.ProviderGoogle, "exchange", rerr.Response.StatusCode, desc)
	}
	return social.TransportError(auth.ProviderGoogle, "exchange", err)
}

type googleErrorResponse struct {
	Error string `json:"error"`
	Desc  string `json:"error_description"`
}

func parseGoogleError(body []byte) string {
	var plain googleErrorResponse
	if err := json.Unmarshal(body, &plain); err == nil && (plain.Error != "" || plain.Desc != "") {
		if plain.Desc != "" {
			return plain.Desc
		}
		return plain.Error
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
