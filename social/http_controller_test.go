package social

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(h *harness) *fiber.App {
	adapter := router.NewFiberAdapter(func(app *fiber.App) *fiber.App { return app })
	r := adapter.Router()
	r.Use(auth.ErrorMiddleware(discardLogger()))

	NewHTTPController(h.social, HTTPConfig{
		CookieName:      "waitrush_session",
		CookieHTTPOnly:  true,
		SuccessRedirect: "/dashboard",
	}).RegisterRoutes(r.Group("/auth/social"))
	return adapter.WrappedRouter()
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(method, target, token, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func location(t *testing.T, resp *http.Response) *url.URL {
	t.Helper()
	require.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	u, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return u
}

func TestHTTPController_ListProviders(t *testing.T) {
	app := newTestApp(newHarness(t))

	resp, body := send(t, app, httptest.NewRequest("GET", "/auth/social/providers", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var out struct {
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, []string{"github", "google"}, out.Providers)
}

func TestHTTPController_RedirectFlow(t *testing.T) {
	h := newHarness(t)
	app := newTestApp(h)

	h.google.
		withCode("code-1", "g-access").
		withProfile("g-access", &GoogleProfile{Email: "web@example.com", ProviderID: "g-web", Name: "Web"})

	resp, _ := send(t, app, httptest.NewRequest("GET", "/auth/social/google?redirect_url=/welcome", nil))
	authURL := location(t, resp)
	assert.Equal(t, "google.example.com", authURL.Host)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	callback := "/auth/social/google/callback?code=code-1&state=" + url.QueryEscape(state)
	resp, _ = send(t, app, httptest.NewRequest("GET", callback, nil))
	signup := location(t, resp)
	assert.Equal(t, "/signup/social", signup.Path)
	assert.Equal(t, "google", signup.Query().Get("provider"))
	assert.Equal(t, "web@example.com", signup.Query().Get("email"))
	ticket := signup.Query().Get("ticket")
	require.NotEmpty(t, ticket)

	resp, body := send(t, app, jsonRequest("POST", "/auth/social/signup", "", `{"ticket":"`+ticket+`"}`))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, string(body))

	var session auth.Session
	require.NoError(t, json.Unmarshal(body, &session))
	assert.NotEmpty(t, session.Token)
	cookie := resp.Header.Get("Set-Cookie")
	assert.Contains(t, cookie, "waitrush_session="+session.Token)
	assert.Contains(t, cookie, "HttpOnly")
	assert.Contains(t, cookie, "SameSite=Lax")

	// the same identity now logs straight in
	resp, _ = send(t, app, httptest.NewRequest("GET", "/auth/social/google", nil))
	state = location(t, resp).Query().Get("state")

	callback = "/auth/social/google/callback?code=code-1&state=" + url.QueryEscape(state)
	resp, _ = send(t, app, httptest.NewRequest("GET", callback, nil))
	assert.Equal(t, "/dashboard", location(t, resp).Path)
	assert.Contains(t, resp.Header.Get("Set-Cookie"), "waitrush_session=")

	// replayed state
	resp, _ = send(t, app, httptest.NewRequest("GET", callback, nil))
	failed := location(t, resp)
	assert.Equal(t, "/login", failed.Path)
	assert.Equal(t, TextCodeInvalidState, failed.Query().Get("error"))
}

func TestHTTPController_CallbackErrors(t *testing.T) {
	app := newTestApp(newHarness(t))

	resp, _ := send(t, app, httptest.NewRequest("GET", "/auth/social/github/callback?error=access_denied&error_description=denied", nil))
	u := location(t, resp)
	assert.Equal(t, "access_denied", u.Query().Get("oauth_error"))
	assert.Equal(t, "denied", u.Query().Get("desc"))

	resp, _ = send(t, app, httptest.NewRequest("GET", "/auth/social/github/callback?code=abc", nil))
	assert.Equal(t, "missing_params", location(t, resp).Query().Get("error"))

	resp, _ = send(t, app, httptest.NewRequest("GET", "/auth/social/github/callback?code=abc&state=garbage", nil))
	assert.Equal(t, TextCodeInvalidState, location(t, resp).Query().Get("error"))

	resp, _ = send(t, app, httptest.NewRequest("GET", "/auth/social/facebook", nil))
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestHTTPController_TokenLinkUnlink(t *testing.T) {
	h := newHarness(t)
	app := newTestApp(h)

	h.github.withProfile("gh-tok", &GitHubProfile{Email: "api@example.com", ProviderID: "gh-api"})
	h.google.withProfile("g-tok", &GoogleProfile{Email: "api@example.com", ProviderID: "g-api"})

	resp, body := send(t, app, jsonRequest("POST", "/auth/social/github/token", "", `{"token":"gh-tok"}`))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	var session auth.Session
	require.NoError(t, json.Unmarshal(body, &session))

	resp, _ = send(t, app, jsonRequest("POST", "/auth/social/github/token", "", `{}`))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = send(t, app, jsonRequest("POST", "/auth/social/github/token", "", `{"token":"nope"}`))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = send(t, app, jsonRequest("POST", "/auth/social/google/link", "", `{"token":"g-tok"}`))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body = send(t, app, jsonRequest("POST", "/auth/social/google/link", session.Token, `{"token":"g-tok"}`))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"status":"linked","provider":"google"}`, string(body))

	resp, body = send(t, app, jsonRequest("DELETE", "/auth/social/github", session.Token, ""))
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	// google is now the only credential left
	resp, body = send(t, app, jsonRequest("DELETE", "/auth/social/google", session.Token, ""))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errBody auth.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, auth.TextCodeLastAuthMethod, errBody.TextCode)
}

func TestHTTPController_BeginAuthRedirectTargets(t *testing.T) {
	app := newTestApp(newHarness(t))

	tests := []struct {
		name   string
		target string
		status int
	}{
		{name: "local path", target: "/welcome", status: fiber.StatusTemporaryRedirect},
		{name: "allowed origin", target: "https://app.waitrush.io/home", status: fiber.StatusTemporaryRedirect},
		{name: "foreign origin", target: "https://evil.com", status: fiber.StatusBadRequest},
		{name: "scheme relative", target: "//evil.com/x", status: fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/auth/social/google?redirect_url=" + url.QueryEscape(tt.target)
			resp, body := send(t, app, httptest.NewRequest("GET", target, nil))
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.status != fiber.StatusBadRequest {
				return
			}

			var errBody auth.ErrorResponse
			require.NoError(t, json.Unmarshal(body, &errBody))
			assert.Equal(t, TextCodeInvalidRedirect, errBody.TextCode)
		})
	}
}

func TestSameSite(t *testing.T) {
	assert.Equal(t, http.SameSiteStrictMode, sameSite("Strict"))
	assert.Equal(t, http.SameSiteNoneMode, sameSite("none"))
	assert.Equal(t, http.SameSiteLaxMode, sameSite("Lax"))
	assert.Equal(t, http.SameSiteDefaultMode, sameSite("bogus"))
}

func TestAppendQueryParam(t *testing.T) {
	assert.Equal(t, "/signup?ticket=abc", appendQueryParam("/signup", "ticket", "abc"))
	assert.Equal(t, "/login?error=x", appendQueryParam("/login?error=auth_failed", "error", "x"))
	assert.Equal(t, "", appendQueryParam("", "a", "b"))
}
