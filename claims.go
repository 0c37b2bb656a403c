package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims are the JWT claims of an organizer session
type SessionClaims struct {
	jwt.RegisteredClaims
	OID string `json:"oid,omitempty"`
}

// OrganizerID returns the organizer id, falling back to the subject
func (c *SessionClaims) OrganizerID() string {
	if c.OID != "" {
		return c.OID
	}
	return c.Subject
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issued at time
func (c *SessionClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}
