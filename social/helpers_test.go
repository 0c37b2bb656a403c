package social

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"testing"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

var (
	testEncKey  = []byte("0123456789abcdef0123456789abcdef")
	testHMACKey = []byte("fedcba9876543210fedcba9876543210")
)

type testConfig struct{}

func (testConfig) GetSigningKey() string            { return "social-test-signing-key-0123456789" }
func (testConfig) GetTokenExpiration() time.Duration { return time.Hour }
func (testConfig) GetIssuer() string                { return "waitrush-test" }
func (testConfig) GetAudience() []string            { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) auth.CredentialStore {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = auth.Migrate(context.Background(), db, discardLogger())
	require.NoError(t, err)

	return auth.NewOrganizersRepository(db, auth.WithOrganizersLogger(discardLogger()))
}

// fakeProvider maps tokens and authorization codes to canned profiles.
type fakeProvider struct {
	name     string
	profiles map[string]Profile
	codes    map[string]string
	err      error

	mu            sync.Mutex
	lastVerifier  string
	lastChallenge string
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{
		name:     name,
		profiles: map[string]Profile{},
		codes:    map[string]string{},
	}
}

func (p *fakeProvider) withProfile(token string, profile Profile) *fakeProvider {
	p.profiles[token] = profile
	return p
}

func (p *fakeProvider) withCode(code, token string) *fakeProvider {
	p.codes[code] = token
	return p
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Verify(_ context.Context, token string) (Profile, error) {
	if p.err != nil {
		return nil, p.err
	}
	profile, ok := p.profiles[token]
	if !ok {
		return nil, ErrInvalidProviderToken
	}
	return profile, nil
}

func (p *fakeProvider) AuthCodeURL(state, codeChallenge string) string {
	p.mu.Lock()
	p.lastChallenge = codeChallenge
	p.mu.Unlock()

	q := url.Values{}
	q.Set("state", state)
	q.Set("code_challenge", codeChallenge)
	q.Set("code_challenge_method", "S256")
	return "https://" + p.name + ".example.com/authorize?" + q.Encode()
}

func (p *fakeProvider) Exchange(_ context.Context, code, codeVerifier string) (string, error) {
	p.mu.Lock()
	p.lastVerifier = codeVerifier
	p.mu.Unlock()

	token, ok := p.codes[code]
	if !ok {
		return "", ErrInvalidProviderToken
	}
	return token, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

type harness struct {
	store  auth.CredentialStore
	auther *auth.Auther
	social *SocialAuthenticator
	google *fakeProvider
	github *fakeProvider
	sink   *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := newTestStore(t)
	sink := &recordingSink{}
	auther := auth.NewAuthenticator(store, testConfig{}).
		WithLogger(discardLogger()).
		WithActivitySink(sink)

	google := newFakeProvider(auth.ProviderGoogle)
	github := newFakeProvider(auth.ProviderGitHub)

	sa := NewSocialAuthenticator(auther, SocialAuthConfig{
		DefaultRedirectURL:     "/dashboard",
		AllowedRedirectOrigins: []string{"https://app.waitrush.io"},
		StateEncryptionKey:     testEncKey,
		StateHMACKey:           testHMACKey,
	}, WithProvider(google), WithProvider(github))

	return &harness{
		store:  store,
		auther: auther,
		social: sa,
		google: google,
		github: github,
		sink:   sink,
	}
}

func (h *harness) organizer(t *testing.T, email, password string, links map[string]string) *auth.Organizer {
	t.Helper()

	org := auth.NewOrganizer(email)
	if password != "" {
		org.PasswordHash = "$2a$12$placeholderplaceholderplaceholderplaceholderplaceho"
	}
	for provider, id := range links {
		org.AddProvider(provider, id)
	}
	created, err := h.store.Insert(context.Background(), org)
	require.NoError(t, err)
	return created
}

func (h *harness) reload(t *testing.T, id string) *auth.Organizer {
	t.Helper()
	org, err := h.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return org
}
