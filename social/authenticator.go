package social

import (
	"context"
	"net/url"
	"sort"
	"strings"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/goliatone/go-errors"
)

// SocialAuthenticator orchestrates social login, the OAuth redirect
// callback and provider linking.
type SocialAuthenticator struct {
	providers    map[string]ProviderVerifier
	stateManager StateManager
	links        *LinkRegistry
	auther       *auth.Auther
	activitySink auth.ActivitySink
	logger       auth.Logger
	config       SocialAuthConfig
}

// SocialAuthConfig configures the social authenticator.
type SocialAuthConfig struct {
	DefaultRedirectURL string
	// AllowedRedirectOrigins lists the absolute origins (scheme://host) a
	// flow may return to. Relative paths are always allowed.
	AllowedRedirectOrigins []string
	StateEncryptionKey     []byte
	StateHMACKey           []byte
	StateTTL               time.Duration
	TicketTTL              time.Duration
}

// SocialAuthOption configures the social authenticator.
type SocialAuthOption func(*SocialAuthenticator)

// NewSocialAuthenticator creates a new social authenticator. Sessions,
// logging and activity default to the ones configured on auther.
func NewSocialAuthenticator(auther *auth.Auther, config SocialAuthConfig, opts ...SocialAuthOption) *SocialAuthenticator {
	cfg := config
	if cfg.StateTTL <= 0 {
		cfg.StateTTL = DefaultStateTTL
	}

	sa := &SocialAuthenticator{
		providers:    make(map[string]ProviderVerifier),
		auther:       auther,
		activitySink: auther.ActivitySink(),
		logger:       auther.Logger(),
		config:       cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sa)
		}
	}

	if sa.stateManager == nil {
		sa.stateManager = NewEncryptedStateManager(
			cfg.StateEncryptionKey,
			cfg.StateHMACKey,
			cfg.StateTTL,
			WithTicketTTL(cfg.TicketTTL),
		)
	}

	if sa.links == nil {
		sa.links = NewLinkRegistry(auther.Store(), sa.logger)
	}

	return sa
}

// WithProvider registers a provider verifier.
func WithProvider(provider ProviderVerifier) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if provider == nil {
			return
		}
		sa.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.stateManager = sm
	}
}

// WithLinkRegistry sets a custom link registry.
func WithLinkRegistry(links *LinkRegistry) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.links = links
	}
}

// WithActivitySink sets the activity sink for audit logging.
func WithActivitySink(sink auth.ActivitySink) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		sa.activitySink = sink
	}
}

// WithLogger sets the logger.
func WithLogger(logger auth.Logger) SocialAuthOption {
	return func(sa *SocialAuthenticator) {
		if logger != nil {
			sa.logger = logger
		}
	}
}

// Provider returns the registered verifier for name.
func (sa *SocialAuthenticator) Provider(name string) (ProviderVerifier, error) {
	provider, ok := sa.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// ListProviders returns the names of all registered providers.
func (sa *SocialAuthenticator) ListProviders() []string {
	names := make([]string, 0, len(sa.providers))
	for name := range sa.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Links returns the link registry.
func (sa *SocialAuthenticator) Links() *LinkRegistry {
	return sa.links
}

// SocialTokenAuth verifies a provider token held by the client and returns
// a session, linking or creating the organizer as needed.
func (sa *SocialAuthenticator) SocialTokenAuth(ctx context.Context, providerName, token string) (*auth.Session, error) {
	profile, err := sa.verify(ctx, providerName, token)
	if err != nil {
		return nil, err
	}

	identity := profile.Identity()
	org, created, err := sa.links.FindOrCreateBySocial(ctx, identity)
	if err != nil {
		sa.logger.Debug("social token auth rejected", "provider", identity.Provider, "error", err)
		return nil, err
	}

	session, err := sa.auther.IssueSession(org.ID.String())
	if err != nil {
		return nil, err
	}

	event := auth.ActivityEventSocialLogin
	if created {
		event = auth.ActivityEventSocialSignup
	}
	sa.emit(ctx, event, org.ID.String(), identity.Provider, map[string]any{
		"flow":        "token",
		"is_new_user": created,
	})

	return session, nil
}

// CallbackResult is the outcome of a redirect callback. Exactly one of
// Session or RequiresSignup is set.
type CallbackResult struct {
	RequiresSignup bool              `json:"requires_signup"`
	Session        *auth.Session     `json:"session,omitempty"`
	Provider       string            `json:"provider,omitempty"`
	Email          string            `json:"email,omitempty"`
	ProviderID     string            `json:"provider_id,omitempty"`
	ProfileHints   map[string]string `json:"profile_hints,omitempty"`
	Ticket         string            `json:"ticket,omitempty"`
	RedirectURL    string            `json:"-"`
}

// OAuthCallback logs in the owner of a verified profile or reports that a
// signup is required. It never writes to the store.
func (sa *SocialAuthenticator) OAuthCallback(ctx context.Context, providerName string, profile Profile) (*CallbackResult, error) {
	provider, err := sa.Provider(providerName)
	if err != nil {
		return nil, err
	}
	if profile == nil || profile.Provider() != provider.Name() {
		return nil, ErrInvalidProviderToken
	}

	identity := profile.Identity()
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	owner, exists, err := sa.links.IdentityExists(ctx, identity)
	if err != nil {
		return nil, err
	}

	if exists {
		session, err := sa.auther.IssueSession(owner.ID.String())
		if err != nil {
			return nil, err
		}
		sa.emit(ctx, auth.ActivityEventSocialLogin, owner.ID.String(), identity.Provider, map[string]any{
			"flow": "callback",
		})
		return &CallbackResult{Session: session, Provider: identity.Provider}, nil
	}

	hints := profile.Hints()
	ticket, err := sa.stateManager.IssueTicket(&SignupTicket{
		Provider:   identity.Provider,
		ProviderID: identity.ProviderID,
		Email:      identity.Email,
		Hints:      hints,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to issue signup ticket").
			WithCode(errors.CodeInternal)
	}

	sa.emit(ctx, auth.ActivityEventSignupRequired, "", identity.Provider, map[string]any{
		"email": identity.Email,
	})

	return &CallbackResult{
		RequiresSignup: true,
		Provider:       identity.Provider,
		Email:          identity.Email,
		ProviderID:     identity.ProviderID,
		ProfileHints:   hints,
		Ticket:         ticket,
	}, nil
}

// SocialSignup creates an organizer for a pending social identity and
// returns a session for it.
func (sa *SocialAuthenticator) SocialSignup(ctx context.Context, email, providerName, providerID string, hints map[string]string) (*auth.Session, error) {
	if _, err := sa.Provider(providerName); err != nil {
		return nil, err
	}

	identity := Identity{
		Provider:   providerName,
		ProviderID: providerID,
		Email:      auth.NormalizeEmail(email),
	}
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}

	_, exists, err := sa.links.IdentityExists(ctx, identity)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, auth.ErrConflict
	}

	if _, err := sa.auther.Store().FindByEmail(ctx, identity.Email); err == nil {
		return nil, auth.ErrEmailAlreadyRegistered
	} else if !errors.Is(err, auth.ErrAccountNotFound) {
		return nil, err
	}

	org, err := sa.links.CreateWithIdentity(ctx, identity)
	if err != nil {
		if errors.Is(err, auth.ErrProviderLinkedElsewhere) {
			return nil, auth.ErrConflict
		}
		return nil, err
	}

	session, err := sa.auther.IssueSession(org.ID.String())
	if err != nil {
		return nil, err
	}

	meta := map[string]any{"flow": "callback"}
	for k, v := range hints {
		meta["hint_"+k] = v
	}
	sa.emit(ctx, auth.ActivityEventSocialSignup, org.ID.String(), identity.Provider, meta)

	return session, nil
}

// SocialSignupWithTicket confirms a pending signup from the ticket issued
// by OAuthCallback.
func (sa *SocialAuthenticator) SocialSignupWithTicket(ctx context.Context, ticket string) (*auth.Session, error) {
	pending, err := sa.stateManager.OpenTicket(ticket)
	if err != nil {
		return nil, err
	}
	return sa.SocialSignup(ctx, pending.Email, pending.Provider, pending.ProviderID, pending.Hints)
}

// LinkProvider verifies token and links the identity to the organizer.
func (sa *SocialAuthenticator) LinkProvider(ctx context.Context, organizerID, providerName, token string) error {
	profile, err := sa.verify(ctx, providerName, token)
	if err != nil {
		return err
	}

	identity := profile.Identity()
	if _, err := sa.links.Link(ctx, organizerID, identity.Provider, identity.ProviderID); err != nil {
		return err
	}

	sa.emit(ctx, auth.ActivityEventProviderLinked, organizerID, identity.Provider, nil)
	return nil
}

// UnlinkProvider removes the provider from the organizer.
func (sa *SocialAuthenticator) UnlinkProvider(ctx context.Context, organizerID, providerName string) error {
	providerName = strings.ToLower(strings.TrimSpace(providerName))
	if !auth.IsSupportedProvider(providerName) {
		return ErrProviderNotFound
	}

	if _, err := sa.links.Unlink(ctx, organizerID, providerName); err != nil {
		return err
	}

	sa.emit(ctx, auth.ActivityEventProviderUnlinked, organizerID, providerName, nil)
	return nil
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// BeginAuth starts the OAuth redirect flow for a provider.
func (sa *SocialAuthenticator) BeginAuth(providerName, redirectURL string) (*AuthRedirect, error) {
	provider, err := sa.Provider(providerName)
	if err != nil {
		return nil, err
	}

	if redirectURL == "" {
		redirectURL = sa.config.DefaultRedirectURL
	}
	if !sa.RedirectAllowed(redirectURL) {
		return nil, ErrInvalidRedirect
	}

	codeVerifier := generateCodeVerifier()
	state := &OAuthState{
		Provider:     provider.Name(),
		CodeVerifier: codeVerifier,
		RedirectURL:  redirectURL,
	}

	stateToken, err := sa.stateManager.Encode(state)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to encode oauth state").
			WithCode(errors.CodeInternal)
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(stateToken, computeCodeChallenge(codeVerifier)),
		State:    stateToken,
		Provider: provider.Name(),
	}, nil
}

// CompleteAuth finishes the redirect flow: it checks the state, exchanges
// the code and hands the verified profile to OAuthCallback.
func (sa *SocialAuthenticator) CompleteAuth(ctx context.Context, providerName, code, stateToken string) (*CallbackResult, error) {
	provider, err := sa.Provider(providerName)
	if err != nil {
		return nil, err
	}

	state, err := sa.stateManager.Decode(stateToken)
	if err != nil {
		return nil, err
	}

	if state.Provider != provider.Name() {
		return nil, ErrInvalidState
	}

	if strings.TrimSpace(code) == "" {
		return nil, ErrInvalidProviderToken
	}

	token, err := provider.Exchange(ctx, code, state.CodeVerifier)
	if err != nil {
		sa.logger.Warn("oauth code exchange failed", append([]any{"provider", provider.Name()}, detailArgs(err)...)...)
		return nil, err
	}

	profile, err := provider.Verify(ctx, token)
	if err != nil {
		sa.logger.Warn("provider verification failed", append([]any{"provider", provider.Name()}, detailArgs(err)...)...)
		return nil, err
	}

	result, err := sa.OAuthCallback(ctx, provider.Name(), profile)
	if err != nil {
		return nil, err
	}
	if sa.RedirectAllowed(state.RedirectURL) {
		result.RedirectURL = state.RedirectURL
	}
	return result, nil
}

// RedirectAllowed reports whether raw is a same-site path or an absolute
// URL on one of the allowed origins.
func (sa *SocialAuthenticator) RedirectAllowed(raw string) bool {
	if raw == "" {
		return true
	}
	if strings.ContainsAny(raw, "\\\r\n") {
		return false
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme == "" && u.Host == "" {
		return strings.HasPrefix(u.Path, "/") && !strings.HasPrefix(raw, "//")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}

	origin := u.Scheme + "://" + strings.ToLower(u.Host)
	for _, allowed := range sa.config.AllowedRedirectOrigins {
		if strings.EqualFold(strings.TrimRight(strings.TrimSpace(allowed), "/"), origin) {
			return true
		}
	}
	return false
}

func (sa *SocialAuthenticator) verify(ctx context.Context, providerName, token string) (Profile, error) {
	provider, err := sa.Provider(providerName)
	if err != nil {
		return nil, err
	}

	profile, err := provider.Verify(ctx, token)
	if err != nil {
		sa.logger.Warn("provider verification failed", append([]any{"provider", provider.Name()}, detailArgs(err)...)...)
		return nil, err
	}
	if profile == nil {
		return nil, ErrInvalidProviderToken
	}
	return profile, nil
}

func (sa *SocialAuthenticator) emit(ctx context.Context, event auth.ActivityEventType, organizerID, provider string, meta map[string]any) {
	auth.EmitActivity(ctx, sa.activitySink, sa.logger, auth.ActivityEvent{
		EventType:   event,
		Actor:       auth.OrganizerActor(organizerID),
		OrganizerID: organizerID,
		Provider:    provider,
		Metadata:    meta,
	})
}

func detailArgs(err error) []any {
	args := []any{"error", err}
	if details, ok := ProviderDetails(err); ok {
		if details.Status != 0 {
			args = append(args, "status", details.Status)
		}
		if details.Description != "" {
			args = append(args, "description", details.Description)
		}
	}
	return args
}
