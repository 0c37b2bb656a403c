package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

var organizerCtxKey = &contextKey{"organizer"}

// ContextOrganizerKey is the request store key set by the session middleware.
const ContextOrganizerKey = "organizer"

type contextKey struct {
	name string
}

// WithContext sets the Organizer in the given context
func WithContext(r context.Context, org *Organizer) context.Context {
	return context.WithValue(r, organizerCtxKey, org)
}

// FromContext finds the organizer from the context.
func FromContext(ctx context.Context) (*Organizer, bool) {
	raw, ok := ctx.Value(organizerCtxKey).(*Organizer)
	return raw, ok && raw != nil
}

// FromRouterContext returns the organizer stored by the session middleware.
func FromRouterContext(c router.Context) (*Organizer, bool) {
	raw, ok := c.Get(ContextOrganizerKey, nil).(*Organizer)
	if ok && raw != nil {
		return raw, true
	}
	return FromContext(c.Context())
}
