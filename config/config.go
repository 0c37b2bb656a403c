// Package config loads the service configuration from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the service configuration. It implements auth.Config.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	Database Database
	JWT      JWT
	OAuth    OAuth
	Google   Provider `envPrefix:"GOOGLE_"`
	GitHub   Provider `envPrefix:"GITHUB_"`
}

// Database selects the bun dialect and connection string.
type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DATABASE_DSN" envDefault:"file:waitrush.db?cache=shared"`

	// Debug logs every query to stderr.
	Debug bool `env:"DATABASE_DEBUG"`
}

// JWT configures session tokens.
type JWT struct {
	Secret     string        `env:"JWT_SECRET,required"`
	Expiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
	Issuer     string        `env:"JWT_ISSUER" envDefault:"waitrush"`
	Audience   []string      `env:"JWT_AUDIENCE" envSeparator:","`
}

// OAuth configures the redirect flow shared by all providers.
type OAuth struct {
	StateSecret        string        `env:"OAUTH_STATE_SECRET"`
	StateTTL           time.Duration `env:"OAUTH_STATE_TTL" envDefault:"10m"`
	ProviderTimeout    time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
	SuccessRedirectURL string        `env:"SUCCESS_REDIRECT_URL" envDefault:"/"`
	SignupRedirectURL  string        `env:"SIGNUP_REDIRECT_URL" envDefault:"/signup/social"`
	ErrorRedirectURL   string        `env:"ERROR_REDIRECT_URL" envDefault:"/login?error=auth_failed"`

	// AllowedRedirectOrigins lists absolute origins a login may return to.
	// Local paths are always accepted.
	AllowedRedirectOrigins []string `env:"OAUTH_ALLOWED_REDIRECT_ORIGINS" envSeparator:","`
}

// Provider holds OAuth client credentials for one provider.
type Provider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
}

// Enabled reports whether the provider has a client id.
func (p Provider) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != ""
}

// Load reads the given .env files, or ".env" when none are given, and
// parses the environment. Missing .env files are ignored.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Join(ErrParsingConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("%w: unsupported DATABASE_DRIVER %q", ErrInvalidConfig, c.Database.Driver)
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("%w: JWT_SECRET must be at least 32 bytes", ErrInvalidConfig)
	}
	if c.JWT.Expiration <= 0 {
		return fmt.Errorf("%w: JWT_EXPIRATION must be positive", ErrInvalidConfig)
	}
	if (c.Google.Enabled() || c.GitHub.Enabled()) && c.OAuth.StateSecret == "" {
		return fmt.Errorf("%w: OAUTH_STATE_SECRET is required when a provider is configured", ErrInvalidConfig)
	}
	return nil
}

func (c *Config) GetSigningKey() string {
	return c.JWT.Secret
}

func (c *Config) GetTokenExpiration() time.Duration {
	return c.JWT.Expiration
}

func (c *Config) GetIssuer() string {
	return c.JWT.Issuer
}

func (c *Config) GetAudience() []string {
	return c.JWT.Audience
}
