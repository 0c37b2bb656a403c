package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

type testConfig struct {
	signingKey string
	expiration time.Duration
	issuer     string
	audience   []string
}

func (c testConfig) GetSigningKey() string            { return c.signingKey }
func (c testConfig) GetTokenExpiration() time.Duration { return c.expiration }
func (c testConfig) GetIssuer() string                { return c.issuer }
func (c testConfig) GetAudience() []string            { return c.audience }

func newTestConfig() testConfig {
	return testConfig{
		signingKey: testSigningKey,
		expiration: time.Hour,
		issuer:     "waitrush-test",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRouter returns a fiber backed router with the error middleware
// installed, plus the fiber app for app.Test.
func newTestRouter() (router.Router[*fiber.App], *fiber.App) {
	adapter := router.NewFiberAdapter(func(app *fiber.App) *fiber.App { return app })
	r := adapter.Router()
	r.Use(auth.ErrorMiddleware(discardLogger()))
	return r, adapter.WrappedRouter()
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = auth.Migrate(context.Background(), db, discardLogger())
	require.NoError(t, err)
	return db
}

// plainHasher keeps tests fast; bcrypt at cost 12 is covered in bcrypt_test.go.
type plainHasher struct{}

func (plainHasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", auth.ErrInvalidPassword
	}
	return "plain:" + password, nil
}

func (plainHasher) VerifyPassword(password, hash string) bool {
	return hash == "plain:"+password
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

type fixture struct {
	db     *bun.DB
	store  auth.CredentialStore
	auther *auth.Auther
	sink   *recordingSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	store := auth.NewOrganizersRepository(db, auth.WithOrganizersLogger(discardLogger()))
	sink := &recordingSink{}

	auther := auth.NewAuthenticator(store, newTestConfig()).
		WithLogger(discardLogger()).
		WithPasswordAuthenticator(plainHasher{}).
		WithActivitySink(sink)

	return &fixture{db: db, store: store, auther: auther, sink: sink}
}

// socialOnly inserts an organizer whose only credential is a provider link.
func (f *fixture) socialOnly(t *testing.T, email string, provider auth.Provider, providerID string) *auth.Organizer {
	t.Helper()
	org := auth.NewOrganizer(email)
	org.AddProvider(provider, providerID)
	created, err := f.store.Insert(context.Background(), org)
	require.NoError(t, err)
	return created
}
