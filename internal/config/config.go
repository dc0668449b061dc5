// Package config provides environment-driven configuration for the clavis
// service, with .env support for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// godotenv.Load does not override already-set variables, preserving
// OS env > .env precedence.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the clavis service.
type Config struct {
	Env              string        // Deployment environment (dev, staging, prod)
	Address          string        // HTTP server address
	RedisURL         string        // Redis connection URL; empty selects the in-memory stores
	ResolverEndpoint string        // Universal-resolver base URL; empty selects the static resolver
	Issuer           string        // Issuer claim for minted JWTs
	ChallengeTTL     time.Duration // Lifetime of an issued authentication challenge
	GrantTTL         time.Duration // Redemption window for authorization codes
	AccessTTL        time.Duration // Access token lifetime
	RefreshTTL       time.Duration // Refresh token lifetime
	AuthorizeTimeout time.Duration // Upper bound on one authorization request
	DemoProofs       bool          // Accept demo proofs (never enable in production)
}

const (
	defaultAddress          = ":9000"
	defaultIssuer           = "clavis"
	defaultChallengeTTL     = 10 * time.Minute
	defaultGrantTTL         = 2 * time.Minute
	defaultAccessTTL        = 5 * time.Minute
	defaultRefreshTTL       = 5 * 24 * time.Hour
	defaultAuthorizeTimeout = 15 * time.Second
)

// Load reads environment variables and produces a Config suitable for wiring
// the service.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("CLAVIS_ENV", "dev"),
		Address:          getEnv("CLAVIS_HTTP_ADDR", defaultAddress),
		RedisURL:         os.Getenv("REDIS_URL"),
		ResolverEndpoint: os.Getenv("CLAVIS_RESOLVER_ENDPOINT"),
		Issuer:           getEnv("CLAVIS_JWT_ISSUER", defaultIssuer),
	}

	var err error
	if cfg.ChallengeTTL, err = getDuration("CLAVIS_CHALLENGE_TTL", defaultChallengeTTL); err != nil {
		return Config{}, err
	}
	if cfg.GrantTTL, err = getDuration("CLAVIS_GRANT_TTL", defaultGrantTTL); err != nil {
		return Config{}, err
	}
	if cfg.AccessTTL, err = getDuration("CLAVIS_ACCESS_TTL", defaultAccessTTL); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTTL, err = getDuration("CLAVIS_REFRESH_TTL", defaultRefreshTTL); err != nil {
		return Config{}, err
	}
	if cfg.AuthorizeTimeout, err = getDuration("CLAVIS_AUTHORIZE_TIMEOUT", defaultAuthorizeTimeout); err != nil {
		return Config{}, err
	}

	if raw, exists := os.LookupEnv("CLAVIS_INSECURE_DEMO_PROOFS"); exists {
		cfg.DemoProofs = parseBool(raw)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// getDuration parses a Go duration string (e.g. "10m", "15s").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}
