package social

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	auth "github.com/KyungBin7/waitrush-sub000"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

const (
	DefaultStateTTL  = 10 * time.Minute
	DefaultTicketTTL = 15 * time.Minute
)

// StateManager handles OAuth state encoding and verification, and the
// signup tickets handed out when a callback finds no account.
type StateManager interface {
	Encode(state *OAuthState) (string, error)
	Decode(token string) (*OAuthState, error)
	IssueTicket(ticket *SignupTicket) (string, error)
	OpenTicket(token string) (*SignupTicket, error)
}

// OAuthState contains the data stored in the OAuth state parameter.
type OAuthState struct {
	Nonce        string `json:"n"`
	Provider     string `json:"p"`
	CodeVerifier string `json:"cv,omitempty"`
	RedirectURL  string `json:"r,omitempty"`
	IssuedAt     int64  `json:"iat"`
	ExpiresAt    int64  `json:"exp"`
}

// SignupTicket carries a verified provider identity from the callback to
// the signup call. It is sealed so the client cannot alter the identity.
type SignupTicket struct {
	Provider   string            `json:"p"`
	ProviderID string            `json:"pid"`
	Email      string            `json:"e"`
	Hints      map[string]string `json:"h,omitempty"`
	IssuedAt   int64             `json:"iat"`
	ExpiresAt  int64             `json:"exp"`
}

// Identity returns the provider identity sealed in the ticket.
func (t *SignupTicket) Identity() Identity {
	return Identity{
		Provider:   t.Provider,
		ProviderID: t.ProviderID,
		Email:      auth.NormalizeEmail(t.Email),
	}
}

// EncryptedStateManager uses AES-GCM encryption and HMAC signing. Decoded
// state nonces are remembered until they expire so a state is accepted
// once.
type EncryptedStateManager struct {
	encryptionKey []byte
	hmacKey       []byte
	ttl           time.Duration
	ticketTTL     time.Duration
	seen          *cache.Cache
	now           func() time.Time
}

// StateOption configures an EncryptedStateManager.
type StateOption func(*EncryptedStateManager)

// WithStateClock overrides the clock used for expiry.
func WithStateClock(now func() time.Time) StateOption {
	return func(sm *EncryptedStateManager) {
		if now != nil {
			sm.now = now
		}
	}
}

// WithTicketTTL sets how long signup tickets stay valid.
func WithTicketTTL(ttl time.Duration) StateOption {
	return func(sm *EncryptedStateManager) {
		if ttl > 0 {
			sm.ticketTTL = ttl
		}
	}
}

// NewEncryptedStateManager creates a new encrypted state manager.
// encryptionKey must be 16, 24 or 32 bytes long.
func NewEncryptedStateManager(encryptionKey, hmacKey []byte, ttl time.Duration, opts ...StateOption) *EncryptedStateManager {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	sm := &EncryptedStateManager{
		encryptionKey: encryptionKey,
		hmacKey:       hmacKey,
		ttl:           ttl,
		ticketTTL:     DefaultTicketTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}
	sm.seen = cache.New(ttl, 2*ttl)
	return sm
}

// Encode encrypts and signs the state.
func (sm *EncryptedStateManager) Encode(state *OAuthState) (string, error) {
	if state == nil {
		return "", ErrInvalidState
	}

	now := sm.now()
	if state.IssuedAt == 0 {
		state.IssuedAt = now.Unix()
	}
	if state.ExpiresAt == 0 {
		state.ExpiresAt = now.Add(sm.ttl).Unix()
	}
	if state.Nonce == "" {
		nonce, err := generateNonce()
		if err != nil {
			return "", err
		}
		state.Nonce = nonce
	}

	return sm.seal(state)
}

// Decode verifies and decrypts the state. A state whose nonce was already
// decoded is rejected with ErrInvalidState.
func (sm *EncryptedStateManager) Decode(token string) (*OAuthState, error) {
	var state OAuthState
	if err := sm.open(token, &state); err != nil {
		return nil, ErrInvalidState
	}

	if state.Nonce == "" || state.Provider == "" {
		return nil, ErrInvalidState
	}

	if sm.now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	if err := sm.seen.Add(state.Nonce, struct{}{}, cache.DefaultExpiration); err != nil {
		return nil, ErrInvalidState
	}

	return &state, nil
}

// IssueTicket seals a signup ticket.
func (sm *EncryptedStateManager) IssueTicket(ticket *SignupTicket) (string, error) {
	if ticket == nil || ticket.Provider == "" || ticket.ProviderID == "" {
		return "", ErrInvalidTicket
	}

	now := sm.now()
	if ticket.IssuedAt == 0 {
		ticket.IssuedAt = now.Unix()
	}
	if ticket.ExpiresAt == 0 {
		ticket.ExpiresAt = now.Add(sm.ticketTTL).Unix()
	}

	return sm.seal(ticket)
}

// OpenTicket verifies a signup ticket and returns its content.
func (sm *EncryptedStateManager) OpenTicket(token string) (*SignupTicket, error) {
	var ticket SignupTicket
	if err := sm.open(token, &ticket); err != nil {
		return nil, ErrInvalidTicket
	}

	if ticket.Provider == "" || ticket.ProviderID == "" {
		return nil, ErrInvalidTicket
	}

	if sm.now().Unix() > ticket.ExpiresAt {
		return nil, ErrInvalidTicket
	}

	return &ticket, nil
}

func (sm *EncryptedStateManager) seal(v any) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal state: %w", err)
	}

	gcm, err := sm.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)

	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(ciphertext)
	signature := mac.Sum(nil)

	result := append(signature, ciphertext...)

	return base64.RawURLEncoding.EncodeToString(result), nil
}

func (sm *EncryptedStateManager) open(token string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return fmt.Errorf("failed to decode base64: %w", err)
	}

	if len(data) < sha256.Size {
		return ErrInvalidState
	}

	signature := data[:sha256.Size]
	ciphertext := data[sha256.Size:]

	mac := hmac.New(sha256.New, sm.hmacKey)
	mac.Write(ciphertext)

	if !hmac.Equal(signature, mac.Sum(nil)) {
		return ErrInvalidState
	}

	gcm, err := sm.aead()
	if err != nil {
		return err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return ErrInvalidState
	}

	nonce, encrypted := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return ErrInvalidState
	}

	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return nil
}

func (sm *EncryptedStateManager) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(sm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// DeriveStateKeys expands a single secret into the encryption and signing
// keys used by EncryptedStateManager.
func DeriveStateKeys(secret string) (encryptionKey, hmacKey []byte) {
	enc := sha256.Sum256([]byte("state-enc:" + secret))
	sig := sha256.Sum256([]byte("state-mac:" + secret))
	return enc[:], sig[:]
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func generateCodeVerifier() string {
	return oauth2.GenerateVerifier()
}

func computeCodeChallenge(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}
