package auth_test

import (
	"context"
	"strings"
	"testing"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuther_SignupAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.auther.Signup(ctx, "Grace@Example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "grace@example.com", summary.Email)
	assert.NotEmpty(t, summary.ID)

	session, err := f.auther.Login(ctx, "grace@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, summary.ID, session.OrganizerID)

	resolved, err := f.auther.Sessions().Resolve(session.Token)
	require.NoError(t, err)
	assert.Equal(t, summary.ID, resolved)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventSignup,
		auth.ActivityEventLoginSuccess,
	}, f.sink.Types())
}

func TestAuther_SignupAcceptsAnyWellFormedEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "user@mycompany.internal"} {
		summary, err := f.auther.Signup(ctx, email, "Secret123!")
		require.NoError(t, err, email)
		assert.Equal(t, email, summary.Email)
	}

	session, err := f.auther.Login(ctx, "a@x.com", "Secret123!")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
}

func TestAuther_SignupMultibytePasswordWithinLimit(t *testing.T) {
	f := newFixture(t)

	// 36 two-byte runes is exactly the bcrypt limit
	_, err := f.auther.Signup(context.Background(), "accent@example.com", strings.Repeat("é", 36))
	require.NoError(t, err)
}

func TestAuther_SignupDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auther.Signup(ctx, "dup@example.com", "password-1")
	require.NoError(t, err)

	_, err = f.auther.Signup(ctx, "DUP@example.com", "password-2")
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyRegistered)
}

func TestAuther_SignupDuplicateOfSocialAccount(t *testing.T) {
	f := newFixture(t)
	f.socialOnly(t, "social@example.com", auth.ProviderGoogle, "g-1")

	_, err := f.auther.Signup(context.Background(), "social@example.com", "password-1")
	assert.ErrorIs(t, err, auth.ErrEmailAlreadyRegistered)
}

func TestAuther_SignupValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
		field    string
	}{
		{name: "invalid email", email: "not-an-email", password: "password-1", field: "email"},
		{name: "empty email", email: "", password: "password-1", field: "email"},
		{name: "short password", email: "a@example.com", password: "short", field: "password"},
		{name: "multibyte password over bcrypt limit", email: "a@example.com", password: strings.Repeat("é", 40), field: "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auther.Signup(context.Background(), tt.email, tt.password)
			require.Error(t, err)

			var richErr *errors.Error
			require.True(t, errors.As(err, &richErr))
			assert.Equal(t, errors.CodeBadRequest, richErr.Code)
			assert.Contains(t, richErr.ValidationMap(), tt.field)
		})
	}
}

func TestAuther_LoginFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.auther.Signup(ctx, "user@example.com", "right-password")
	require.NoError(t, err)
	f.socialOnly(t, "social@example.com", auth.ProviderGitHub, "gh-1")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "user@example.com", password: "wrong-password"},
		{name: "unknown email", email: "nobody@example.com", password: "right-password"},
		{name: "social only account", email: "social@example.com", password: "right-password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := f.auther.Login(ctx, tt.email, tt.password)
			assert.Nil(t, session)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}

	failures := 0
	for _, typ := range f.sink.Types() {
		if typ == auth.ActivityEventLoginFailure {
			failures++
		}
	}
	assert.Equal(t, 3, failures)
}

func TestAuther_Profile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.auther.Signup(ctx, "profile@example.com", "password-1")
	require.NoError(t, err)

	_, err = f.store.AddProvider(ctx, summary.ID, auth.ProviderGitHub, "gh-42")
	require.NoError(t, err)

	profile, err := f.auther.Profile(ctx, summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "profile@example.com", profile.Email)
	assert.Equal(t, []string{auth.AuthMethodPassword, auth.ProviderGitHub}, profile.AuthMethods)
	require.Len(t, profile.SocialProviders, 1)
	assert.Equal(t, "gh-42", profile.SocialProviders[0].ProviderID)

	_, err = f.auther.Profile(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}

func TestAuther_OrganizerFromToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.socialOnly(t, "token@example.com", auth.ProviderGoogle, "g-token")
	session, err := f.auther.IssueSession(org.ID.String())
	require.NoError(t, err)

	found, err := f.auther.OrganizerFromToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, org.ID, found.ID)

	require.NoError(t, f.store.Delete(ctx, org.ID.String()))

	_, err = f.auther.OrganizerFromToken(ctx, session.Token)
	assert.ErrorIs(t, err, auth.ErrInvalidSession)
}
