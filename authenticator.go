package auth

import (
	"context"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
)

// Auther handles password accounts, sessions and profiles
type Auther struct {
	store        CredentialStore
	passwords    PasswordAuthenticator
	sessions     SessionIssuer
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(store CredentialStore, opts Config) *Auther {
	return &Auther{
		store:        store,
		passwords:    NewBcryptAuthenticator(MinPasswordCost),
		sessions:     NewTokenService(opts, defLogger{}),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	if ts, ok := s.sessions.(*TokenService); ok {
		ts.logger = s.logger
	}
	return s
}

// WithPasswordAuthenticator replaces the password hasher.
func (s *Auther) WithPasswordAuthenticator(p PasswordAuthenticator) *Auther {
	if p != nil {
		s.passwords = p
	}
	return s
}

// WithSessionIssuer replaces the session issuer.
func (s *Auther) WithSessionIssuer(issuer SessionIssuer) *Auther {
	if issuer != nil {
		s.sessions = issuer
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// Store returns the credential store
func (s *Auther) Store() CredentialStore {
	return s.store
}

// Sessions returns the session issuer
func (s *Auther) Sessions() SessionIssuer {
	return s.sessions
}

// Logger returns the configured logger
func (s *Auther) Logger() Logger {
	return s.logger
}

// ActivitySink returns the configured sink
func (s *Auther) ActivitySink() ActivitySink {
	return s.activitySink
}

// SignupRequest is the input of a password signup
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the signup input
func (r SignupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 0), validation.By(maxBytes(maxPasswordBytes))),
	)
}

// maxBytes limits the encoded length of a string. Length counts runes,
// bcrypt counts bytes.
func maxBytes(limit int) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if len(s) > limit {
			return validation.NewError("validation_length_too_long", fmt.Sprintf("the length must be no more than %d bytes", limit))
		}
		return nil
	}
}

// LoginRequest is the input of a password login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the login input
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ValidateInput runs an ozzo validatable and returns a 400 error on failure.
func ValidateInput(v validation.Validatable, msg string) error {
	if verr := errors.ValidateWithOzzo(v.Validate, msg); verr != nil {
		return verr.WithCode(errors.CodeBadRequest).WithTextCode("AUTH_VALIDATION_FAILED")
	}
	return nil
}

// Signup creates a password account.
func (s *Auther) Signup(ctx context.Context, email, password string) (*OrganizerSummary, error) {
	req := SignupRequest{Email: strings.TrimSpace(email), Password: password}
	if err := ValidateInput(req, "invalid signup request"); err != nil {
		return nil, err
	}

	email = NormalizeEmail(req.Email)
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyRegistered
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(password)
	if err != nil {
		return nil, err
	}

	org := NewOrganizer(email)
	org.PasswordHash = hash

	created, err := s.store.Insert(ctx, org)
	if err != nil {
		s.logger.Warn("Signup insert failed", "email", email, "error", err)
		return nil, err
	}

	EmitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:   ActivityEventSignup,
		Actor:       OrganizerActor(created.ID.String()),
		OrganizerID: created.ID.String(),
		Provider:    AuthMethodPassword,
	})

	return created.Summary(), nil
}

// Login verifies email and password and issues a session. Unknown emails,
// social-only accounts and wrong passwords all fail the same way.
func (s *Auther) Login(ctx context.Context, email, password string) (*Session, error) {
	if err := ValidateInput(LoginRequest{Email: email, Password: password}, "invalid login request"); err != nil {
		return nil, err
	}

	org, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.loginFailed(ctx, "", "unknown email")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !org.HasPassword() || !s.passwords.VerifyPassword(password, org.PasswordHash) {
		s.loginFailed(ctx, org.ID.String(), "password mismatch")
		return nil, ErrInvalidCredentials
	}

	session, err := s.sessions.Issue(org.ID.String())
	if err != nil {
		s.logger.Error("Login failed to issue session", "error", err)
		return nil, err
	}

	EmitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:   ActivityEventLoginSuccess,
		Actor:       OrganizerActor(org.ID.String()),
		OrganizerID: org.ID.String(),
		Provider:    AuthMethodPassword,
	})

	return session, nil
}

func (s *Auther) loginFailed(ctx context.Context, organizerID, reason string) {
	s.logger.Debug("Login rejected", "organizer_id", organizerID, "reason", reason)
	EmitActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType:   ActivityEventLoginFailure,
		Actor:       OrganizerActor(organizerID),
		OrganizerID: organizerID,
		Provider:    AuthMethodPassword,
		Metadata:    map[string]any{"reason": reason},
	})
}

// IssueSession mints a session for an organizer that was already authenticated.
func (s *Auther) IssueSession(organizerID string) (*Session, error) {
	return s.sessions.Issue(organizerID)
}

// Profile returns the full profile of the organizer.
func (s *Auther) Profile(ctx context.Context, organizerID string) (*FullProfile, error) {
	org, err := s.store.FindByID(ctx, organizerID)
	if err != nil {
		return nil, err
	}
	return org.Profile(), nil
}

// OrganizerFromToken resolves the token and loads the organizer. Tokens for
// deleted organizers are invalid.
func (s *Auther) OrganizerFromToken(ctx context.Context, token string) (*Organizer, error) {
	organizerID, err := s.sessions.Resolve(token)
	if err != nil {
		return nil, err
	}

	org, err := s.store.FindByID(ctx, organizerID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.logger.Debug("session for missing organizer", "organizer_id", organizerID)
			return nil, ErrInvalidSession
		}
		return nil, err
	}
	return org, nil
}
