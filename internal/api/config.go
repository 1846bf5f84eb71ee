package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Config holds API server configuration
type Config struct {
	HTTPAddr  string `env:"HTTP_ADDR" flag:"http-addr" default:":8080" desc:"HTTP API listen address"`
	JWTSecret string `env:"API_JWT_SECRET" flag:"jwt-secret" desc:"Secret used to sign API tokens (random if unset)"`
	TokenTTL  string `env:"API_TOKEN_TTL" flag:"token-ttl" default:"24h" desc:"Lifetime of issued API tokens"`
}

// PostParse generates a random JWT secret when none is configured
func (c *Config) PostParse() error {
	if c.JWTSecret == "" {
		secret := make([]byte, 32) // 256 bits
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		c.JWTSecret = hex.EncodeToString(secret)
		slog.Warn("API_JWT_SECRET not set, generated random secret. Tokens will not survive a restart.")
	}

	if _, err := time.ParseDuration(c.TokenTTL); c.TokenTTL != "" && err != nil {
		return fmt.Errorf("invalid API_TOKEN_TTL %q: %w", c.TokenTTL, err)
	}
	return nil
}

func (c *Config) secret() []byte {
	return []byte(c.JWTSecret)
}

func (c *Config) tokenTTL() time.Duration {
	ttl, err := time.ParseDuration(c.TokenTTL)
	if err != nil || ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}

// IssueToken signs a token for subject with the admin role using the configured secret and TTL
func (c *Config) IssueToken(subject string) (string, error) {
	return GenerateJWT(c.secret(), subject, RoleAdmin, c.tokenTTL())
}
