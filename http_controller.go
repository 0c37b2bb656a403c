package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// AuthController serves password signup, login, profile and account deletion.
type AuthController struct {
	auther   *Auther
	accounts *AccountManager
}

// NewAuthController creates the controller
func NewAuthController(auther *Auther, accounts *AccountManager) *AuthController {
	return &AuthController{
		auther:   auther,
		accounts: accounts,
	}
}

// Protected returns the session middleware bound to this controller's Auther.
func (c *AuthController) Protected() router.MiddlewareFunc {
	return SessionMiddleware(c.auther)
}

// RegisterRoutes mounts the routes on group, usually r.Group("/auth").
func (c *AuthController) RegisterRoutes(group RouteRegistrar) {
	group.Post("/signup", c.Signup)
	group.Post("/login", c.Login)
	group.Get("/profile", c.Profile, c.Protected())
	group.Delete("/account", c.DeleteAccount, c.Protected())
}

// Signup handles POST /auth/signup
func (c *AuthController) Signup(ctx router.Context) error {
	var req SignupRequest
	if err := ctx.Bind(&req); err != nil {
		return invalidBody()
	}

	summary, err := c.auther.Signup(ctx.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, summary)
}

// Login handles POST /auth/login
func (c *AuthController) Login(ctx router.Context) error {
	var req LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return invalidBody()
	}

	session, err := c.auther.Login(ctx.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, session)
}

// Profile handles GET /auth/profile
func (c *AuthController) Profile(ctx router.Context) error {
	org, ok := FromRouterContext(ctx)
	if !ok {
		return ErrInvalidSession
	}

	profile, err := c.auther.Profile(ctx.Context(), org.ID.String())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, profile)
}

// DeleteAccount handles DELETE /auth/account
func (c *AuthController) DeleteAccount(ctx router.Context) error {
	org, ok := FromRouterContext(ctx)
	if !ok {
		return ErrInvalidSession
	}

	report, err := c.accounts.DeleteAccount(ctx.Context(), org.ID.String())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func invalidBody() error {
	return errors.New("invalid request body", errors.CategoryBadInput).
		WithCode(errors.CodeBadRequest)
}
