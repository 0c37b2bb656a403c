package social

import (
	"net/http"
	"net/url"
	"strings"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// HTTPController handles social auth HTTP routes.
type HTTPController struct {
	authenticator *SocialAuthenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// CookieName for storing the session token. Empty disables the cookie.
	CookieName string

	CookieSecure   bool
	CookieHTTPOnly bool

	// CookieSameSite sets the SameSite attribute (e.g. "Lax", "Strict", "None")
	CookieSameSite string

	// SuccessRedirect is the default redirect after a callback login
	SuccessRedirect string

	// SignupRedirect receives the ticket when a callback needs a signup
	SignupRedirect string

	// ErrorRedirect is the redirect for callback errors
	ErrorRedirect string
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(sa *SocialAuthenticator, cfg HTTPConfig) *HTTPController {
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.SignupRedirect == "" {
		cfg.SignupRedirect = "/signup/social"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/login?error=auth_failed"
	}

	return &HTTPController{
		authenticator: sa,
		config:        cfg,
	}
}

type tokenRequest struct {
	Token string `json:"token" form:"token"`
}

type ticketRequest struct {
	Ticket string `json:"ticket" form:"ticket"`
}

// RegisterRoutes mounts the routes on group, usually r.Group("/auth/social").
func (c *HTTPController) RegisterRoutes(group auth.RouteRegistrar) {
	protected := auth.SessionMiddleware(c.authenticator.auther)

	group.Get("/providers", c.ListProviders)
	group.Post("/signup", c.Signup)
	group.Get("/:provider/callback", c.Callback)
	group.Post("/:provider/token", c.TokenAuth)
	group.Post("/:provider/link", c.LinkAccount, protected)
	group.Delete("/:provider", c.UnlinkAccount, protected)
	group.Get("/:provider", c.BeginAuth)
}

// ListProviders returns available social providers.
func (c *HTTPController) ListProviders(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"providers": c.authenticator.ListProviders(),
	})
}

// TokenAuth handles POST /auth/social/:provider/token
func (c *HTTPController) TokenAuth(ctx router.Context) error {
	var req tokenRequest
	if err := ctx.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return badRequest("token is required")
	}

	session, err := c.authenticator.SocialTokenAuth(ctx.Context(), ctx.Param("provider", ""), req.Token)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}

// BeginAuth starts the OAuth flow.
func (c *HTTPController) BeginAuth(ctx router.Context) error {
	redirectURL := ctx.Query("redirect_url", c.config.SuccessRedirect)

	redirect, err := c.authenticator.BeginAuth(ctx.Param("provider", ""), redirectURL)
	if err != nil {
		return err
	}

	return redirectTo(ctx, redirect.URL)
}

// Callback handles the OAuth callback.
func (c *HTTPController) Callback(ctx router.Context) error {
	code := ctx.Query("code", "")
	state := ctx.Query("state", "")

	if errCode := ctx.Query("error", ""); errCode != "" {
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "oauth_error", errCode)
		if errDesc := ctx.Query("error_description", ""); errDesc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", errDesc)
		}
		return redirectTo(ctx, redirectURL)
	}

	if code == "" || state == "" {
		return redirectTo(ctx, appendQueryParam(c.config.ErrorRedirect, "error", "missing_params"))
	}

	result, err := c.authenticator.CompleteAuth(ctx.Context(), ctx.Param("provider", ""), code, state)
	if err != nil {
		return c.redirectError(ctx, err)
	}

	if result.RequiresSignup {
		redirectURL := appendQueryParam(c.config.SignupRedirect, "ticket", result.Ticket)
		redirectURL = appendQueryParam(redirectURL, "provider", result.Provider)
		redirectURL = appendQueryParam(redirectURL, "email", result.Email)
		return redirectTo(ctx, redirectURL)
	}

	c.setAuthCookie(ctx, result.Session)

	redirectURL := result.RedirectURL
	if redirectURL == "" {
		redirectURL = c.config.SuccessRedirect
	}
	return redirectTo(ctx, redirectURL)
}

// Signup handles POST /auth/social/signup with a ticket from the callback.
func (c *HTTPController) Signup(ctx router.Context) error {
	var req ticketRequest
	if err := ctx.Bind(&req); err != nil || strings.TrimSpace(req.Ticket) == "" {
		return badRequest("ticket is required")
	}

	session, err := c.authenticator.SocialSignupWithTicket(ctx.Context(), req.Ticket)
	if err != nil {
		return err
	}

	c.setAuthCookie(ctx, session)
	return ctx.JSON(http.StatusCreated, session)
}

// LinkAccount links a provider to the current organizer.
func (c *HTTPController) LinkAccount(ctx router.Context) error {
	org, ok := auth.FromRouterContext(ctx)
	if !ok {
		return auth.ErrInvalidSession
	}

	var req tokenRequest
	if err := ctx.Bind(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		return badRequest("token is required")
	}

	providerName := ctx.Param("provider", "")
	if err := c.authenticator.LinkProvider(ctx.Context(), org.ID.String(), providerName, req.Token); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"status":   "linked",
		"provider": strings.ToLower(providerName),
	})
}

// UnlinkAccount removes a provider link from the current organizer.
func (c *HTTPController) UnlinkAccount(ctx router.Context) error {
	org, ok := auth.FromRouterContext(ctx)
	if !ok {
		return auth.ErrInvalidSession
	}

	providerName := ctx.Param("provider", "")
	if err := c.authenticator.UnlinkProvider(ctx.Context(), org.ID.String(), providerName); err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"status":   "unlinked",
		"provider": strings.ToLower(providerName),
	})
}

func (c *HTTPController) setAuthCookie(ctx router.Context, session *auth.Session) {
	if c.config.CookieName == "" || session == nil {
		return
	}
	cookie := &http.Cookie{
		Name:     c.config.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		Secure:   c.config.CookieSecure,
		HttpOnly: c.config.CookieHTTPOnly,
		SameSite: sameSite(c.config.CookieSameSite),
	}
	ctx.SetHeader("Set-Cookie", cookie.String())
}

func (c *HTTPController) redirectError(ctx router.Context, err error) error {
	code := "auth_failed"
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode != "" && richErr.Category != errors.CategoryInternal {
		code = richErr.TextCode
	} else {
		c.authenticator.logger.Error("oauth callback failed", "error", err)
	}

	return redirectTo(ctx, appendQueryParam(c.config.ErrorRedirect, "error", code))
}

func redirectTo(ctx router.Context, location string) error {
	ctx.SetHeader("Location", location)
	return ctx.NoContent(http.StatusTemporaryRedirect)
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
}

func badRequest(msg string) error {
	return errors.New(msg, errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest).
		WithTextCode("AUTH_BAD_REQUEST")
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
