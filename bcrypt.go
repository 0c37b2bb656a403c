package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordCost is the lowest bcrypt cost accepted for organizer passwords.
const MinPasswordCost = 12

// maxPasswordBytes is the bcrypt input limit
const maxPasswordBytes = 72

// BcryptAuthenticator implements PasswordAuthenticator
type BcryptAuthenticator struct {
	cost int
}

// NewBcryptAuthenticator returns a hasher using cost, raised to
// MinPasswordCost when lower.
func NewBcryptAuthenticator(cost int) *BcryptAuthenticator {
	if cost < MinPasswordCost {
		cost = MinPasswordCost
	}
	return &BcryptAuthenticator{cost: cost}
}

// Cost returns the configured work factor
func (b *BcryptAuthenticator) Cost() int {
	return b.cost
}

// HashPassword will generate a password hash
func (b *BcryptAuthenticator) HashPassword(password string) (string, error) {
	if password == "" || len(password) > maxPasswordBytes {
		return "", ErrInvalidPassword
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", internalError(err, "failed to hash password")
	}
	return string(h), nil
}

// VerifyPassword reports whether password matches hash. Malformed hashes
// never match.
func (b *BcryptAuthenticator) VerifyPassword(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return ComparePasswordAndHash(password, hash) == nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}
