package service

import (
	"context"
	"errors"

	"keyward/internal/audit"
	"keyward/internal/jwttoken"
	dErrors "keyward/pkg/domain-errors"
)

// ValidateToken checks a bearer token and returns the subject identity ID.
// The three jwttoken failures stay distinguishable via errors.Is for logs
// and metrics; callers all see an unauthorized domain error.
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	identityID, err := s.tokens.Validate(tokenString)
	if err == nil {
		return identityID, nil
	}

	reason := "malformed"
	switch {
	case errors.Is(err, jwttoken.ErrExpired):
		reason = "expired"
	case errors.Is(err, jwttoken.ErrBadSignature):
		reason = "bad_signature"
	}
	if s.metrics != nil {
		s.metrics.TokenRejections.WithLabelValues(reason).Inc()
	}
	s.record(ctx, audit.Event{
		Action: audit.ActionTokenRejected,
		Reason: reason,
	})
	return "", dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token")
}
