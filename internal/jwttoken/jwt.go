// Package jwttoken issues and validates the bearer tokens returned by login
// and register. Tokens are self-contained HS256 JWTs; once issued they are
// trusted until expiry. There is no revocation list: the accepted tradeoff
// is a short TTL, so a leaked token dies on its own within minutes.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Typed validation failures. Transport maps all three to 401 but logs them
// apart, since a burst of bad signatures means something very different from
// a burst of expiries.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
)

const tokenTypeSession = "session"

// Claims is the claims set carried by a session token.
type Claims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Service signs and validates session tokens under a process-wide key.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source, for tests that need to cross an expiry
// boundary without sleeping.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a token service. ttl bounds every issued token's lifetime.
func New(signingKey []byte, issuer string, ttl time.Duration, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("jwttoken: signing key is required")
	}
	if ttl <= 0 {
		return nil, errors.New("jwttoken: ttl must be positive")
	}
	s := &Service{
		signingKey: signingKey,
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a session token for subject. The subject is the identity ID,
// never an email or username.
func (s *Service) Issue(subject string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType: tokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate checks structure, signature, and expiry, in that order, and
// returns the subject identity ID on success.
func (s *Service) Validate(tokenString string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return "", ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return "", ErrBadSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", ErrExpired
		default:
			return "", ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrMalformed
	}
	if claims.TokenType != tokenTypeSession || claims.Subject == "" {
		return "", ErrMalformed
	}
	return claims.Subject, nil
}
