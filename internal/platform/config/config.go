// Package config builds process configuration from the environment so main
// stays lean. Cryptographic keys pass through here exactly once, at startup.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"keyward/internal/fieldcrypt"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// EncryptionKey protects PII fields at rest. Exactly 32 bytes,
	// supplied base64-encoded in KEYWARD_ENCRYPTION_KEY.
	EncryptionKey []byte
	// JWTSigningKey signs session tokens.
	JWTSigningKey []byte
	TokenTTL      time.Duration
	TokenIssuer   string

	// Rate governor policy: RateLimit admissions per RateWindow per key.
	RateLimit  int
	RateWindow time.Duration

	// Argon2 cost overrides; zero values keep the package defaults.
	Argon2MemoryKiB uint32
	Argon2Time      uint32

	// DatabaseURL enables the Postgres credential store; empty keeps the
	// in-memory store. RedisURL likewise for the distributed rate buckets.
	DatabaseURL string
	RedisURL    string
}

// FromEnv reads configuration from environment variables, applying
// development defaults for everything except the encryption key, which has
// no safe default.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:        envOr("KEYWARD_ADDR", ":8080"),
		TokenIssuer: envOr("KEYWARD_TOKEN_ISSUER", "keyward"),
		DatabaseURL: os.Getenv("KEYWARD_DATABASE_URL"),
		RedisURL:    os.Getenv("KEYWARD_REDIS_URL"),
	}

	rawKey := os.Getenv("KEYWARD_ENCRYPTION_KEY")
	if rawKey == "" {
		return Config{}, fmt.Errorf("KEYWARD_ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(rawKey)
	if err != nil {
		return Config{}, fmt.Errorf("KEYWARD_ENCRYPTION_KEY is not valid base64")
	}
	if len(key) != fieldcrypt.KeySize {
		return Config{}, fmt.Errorf("KEYWARD_ENCRYPTION_KEY must decode to %d bytes, got %d", fieldcrypt.KeySize, len(key))
	}
	cfg.EncryptionKey = key

	signingKey := os.Getenv("KEYWARD_JWT_SIGNING_KEY")
	if signingKey == "" {
		return Config{}, fmt.Errorf("KEYWARD_JWT_SIGNING_KEY is required")
	}
	cfg.JWTSigningKey = []byte(signingKey)

	if cfg.TokenTTL, err = durationOr("KEYWARD_TOKEN_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateWindow, err = durationOr("KEYWARD_RATE_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit, err = intOr("KEYWARD_RATE_LIMIT", 30); err != nil {
		return Config{}, err
	}

	if v, err := intOr("KEYWARD_ARGON2_MEMORY_KIB", 0); err != nil {
		return Config{}, err
	} else {
		cfg.Argon2MemoryKiB = uint32(v)
	}
	if v, err := intOr("KEYWARD_ARGON2_TIME", 0); err != nil {
		return Config{}, err
	} else {
		cfg.Argon2Time = uint32(v)
	}

	return cfg, nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func durationOr(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

func intOr(name string, fallback int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
