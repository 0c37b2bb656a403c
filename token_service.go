package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is used when the config does not set one
const DefaultTokenExpiration = 24 * time.Hour

// TokenService implements SessionIssuer with HS256 JWTs
type TokenService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, logger Logger) *TokenService {
	exp := cfg.GetTokenExpiration()
	if exp <= 0 {
		exp = DefaultTokenExpiration
	}
	var aud jwt.ClaimStrings
	for _, a := range cfg.GetAudience() {
		if a = strings.TrimSpace(a); a != "" {
			aud = append(aud, a)
		}
	}
	return &TokenService{
		signingKey: []byte(cfg.GetSigningKey()),
		expiration: exp,
		issuer:     cfg.GetIssuer(),
		audience:   aud,
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}
}

// WithClock overrides the time source, used by tests
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// Issue mints a session token for the organizer
func (ts *TokenService) Issue(organizerID string) (*Session, error) {
	if organizerID == "" {
		return nil, errors.New("organizer id must not be empty", errors.CategoryInternal)
	}

	now := ts.now()
	expiresAt := now.Add(ts.expiration)
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   organizerID,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		OID: organizerID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token, err := ts.SignClaims(claims)
	if err != nil {
		return nil, err
	}

	return &Session{
		Token:       token,
		OrganizerID: organizerID,
		ExpiresAt:   expiresAt.UTC().Truncate(time.Second),
	}, nil
}

// SignClaims signs arbitrary session claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Resolve verifies the token and returns the organizer id it asserts
func (ts *TokenService) Resolve(tokenString string) (string, error) {
	claims, err := ts.Validate(tokenString)
	if err != nil {
		return "", err
	}
	return claims.OrganizerID(), nil
}

// Validate parses and validates a token string, returning structured claims
func (ts *TokenService) Validate(tokenString string) (*SessionClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, ErrInvalidSession
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		ts.logger.Debug("TokenService rejected token", "error", err)
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid || claims.OrganizerID() == "" {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, ErrInvalidSession
	}

	return claims, nil
}
