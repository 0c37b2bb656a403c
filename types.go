package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is satisfied by *slog.Logger. Arguments after the message are
// key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds session options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetAudience() []string
}

// PasswordAuthenticator hashes and verifies passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool
}

// SessionIssuer mints and resolves session tokens
type SessionIssuer interface {
	Issue(organizerID string) (*Session, error)
	Resolve(token string) (string, error)
}

// OwnedDataStore is the external service/participant store. Account
// deletion uses it to cascade to everything an organizer owns.
type OwnedDataStore interface {
	ListServicesByOwner(ctx context.Context, ownerID string) ([]string, error)
	DeleteServicesByOwner(ctx context.Context, ownerID string) (int, error)
	DeleteParticipantsByServiceIDs(ctx context.Context, serviceIDs []string) (int, error)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(line("DBG", msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(line("INF", msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(line("WRN", msg, args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(line("ERR", msg, args))
}

func line(level, msg string, args []any) string {
	out := "[" + level + "] AUTH " + msg
	for i := 0; i+1 < len(args); i += 2 {
		out += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		out += fmt.Sprintf(" %v", args[len(args)-1])
	}
	return out
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
