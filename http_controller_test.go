package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/KyungBin7/waitrush-sub000/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newControllerApp(t *testing.T) (*fiber.App, *fixture, *repository.WaitlistRepository) {
	t.Helper()
	f := newFixture(t)
	waitlist := repository.NewWaitlistRepository(f.db)
	accounts := auth.NewAccountManager(f.store, waitlist).WithLogger(discardLogger())

	r, app := newTestRouter()
	auth.NewAuthController(f.auther, accounts).RegisterRoutes(r.Group("/auth"))
	return app, f, waitlist
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestAuthController_Flow(t *testing.T) {
	app, _, waitlist := newControllerApp(t)

	resp, body := doJSON(t, app, "POST", "/auth/signup", "", map[string]string{
		"email":    "flow@example.com",
		"password": "password-123",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var summary auth.OrganizerSummary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, "flow@example.com", summary.Email)

	resp, body = doJSON(t, app, "POST", "/auth/signup", "", map[string]string{
		"email":    "flow@example.com",
		"password": "password-123",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, "POST", "/auth/login", "", map[string]string{
		"email":    "flow@example.com",
		"password": "password-123",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var session auth.Session
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, summary.ID, session.OrganizerID)

	resp, body = doJSON(t, app, "GET", "/auth/profile", session.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var profile auth.FullProfile
	require.NoError(t, json.Unmarshal(body, &profile))
	assert.Equal(t, []string{auth.AuthMethodPassword}, profile.AuthMethods)
	assert.Empty(t, profile.SocialProviders)

	svc, err := waitlist.CreateService(context.Background(), summary.ID, "Launch", "launch")
	require.NoError(t, err)
	_, err = waitlist.AddParticipant(context.Background(), svc.ID, "fan@example.com")
	require.NoError(t, err)

	resp, body = doJSON(t, app, "DELETE", "/auth/account", session.Token, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var report auth.DeletionReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, auth.DeletionReport{DeletedServices: 1, DeletedParticipants: 1}, report)

	resp, _ = doJSON(t, app, "GET", "/auth/profile", session.Token, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAuthController_Errors(t *testing.T) {
	app, _, _ := newControllerApp(t)

	resp, body := doJSON(t, app, "POST", "/auth/login", "", map[string]string{
		"email":    "ghost@example.com",
		"password": "password-123",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var errBody auth.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, auth.TextCodeInvalidCredentials, errBody.TextCode)

	resp, body = doJSON(t, app, "POST", "/auth/signup", "", map[string]string{
		"email":    "bad",
		"password": "x",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	errBody = auth.ErrorResponse{}
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Contains(t, errBody.ValidationErrors, "email")
	assert.Contains(t, errBody.ValidationErrors, "password")

	resp, _ = doJSON(t, app, "GET", "/auth/profile", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, app, "DELETE", "/auth/account", "garbage", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
