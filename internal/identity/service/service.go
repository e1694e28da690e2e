// Package service implements the identity flows: registration, login,
// credential changes, token validation. It is the only package that reads or
// writes credential records, and the only place PII envelopes are opened.
package service

import (
	"context"
	"log/slog"
	"time"

	"keyward/internal/audit"
	"keyward/internal/fieldcrypt"
	"keyward/internal/identity/models"
	"keyward/internal/jwttoken"
	"keyward/internal/password"
	"keyward/internal/platform/metrics"
	"keyward/internal/ratelimit"
	dErrors "keyward/pkg/domain-errors"
)

// UserStore is the storage collaborator for credential records. All methods
// return sentinel errors for infrastructure facts; the service translates
// them to domain errors.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmailHash(ctx context.Context, hash string) (*models.User, error)
	FindByUsernameHash(ctx context.Context, hash string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
}

// AuditRecorder receives security events without blocking the request path.
type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}

// errInvalidCredentials is the single authentication failure returned for
// both lookup miss and password mismatch. One variant, one message: a caller
// must not be able to probe which accounts exist.
var errInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")

// errRateLimited is the throttling outcome. Distinct code so transport
// answers 429, never 401.
var errRateLimited = dErrors.New(dErrors.CodeRateLimited, "too many requests")

// Service orchestrates the credential and session pipeline.
type Service struct {
	users   UserStore
	hasher  *password.Hasher
	cipher  *fieldcrypt.Cipher
	tokens  *jwttoken.Service
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor AuditRecorder
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditRecorder(a AuditRecorder) Option {
	return func(s *Service) { s.auditor = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires the service. Every collaborator except metrics and audit is
// required.
func New(
	users UserStore,
	hasher *password.Hasher,
	cipher *fieldcrypt.Cipher,
	tokens *jwttoken.Service,
	limiter *ratelimit.Limiter,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		users:   users,
		hasher:  hasher,
		cipher:  cipher,
		tokens:  tokens,
		limiter: limiter,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// admit runs the rate governor for every given key before any cryptographic
// work. The first rejected key stops the flow.
func (s *Service) admit(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if res := s.limiter.Admit(ctx, key); !res.Allowed {
			if s.metrics != nil {
				s.metrics.RateLimited.Inc()
			}
			s.record(ctx, audit.Event{
				Action:    audit.ActionRequestThrottled,
				ClientKey: key,
			})
			return errRateLimited
		}
	}
	return nil
}

func (s *Service) record(ctx context.Context, event audit.Event) {
	if s.auditor != nil {
		s.auditor.Record(ctx, event)
	}
}

// aad binds an envelope to its record and field so ciphertexts cannot be
// swapped between users or columns without failing authentication.
func aad(identityID, field string) []byte {
	return []byte(identityID + ":" + field)
}

// sealField encrypts one PII value for the given record.
func (s *Service) sealField(identityID, field, value string) (string, error) {
	sealed, err := s.cipher.SealString(value, aad(identityID, field))
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
	return sealed, nil
}

// openField decrypts one PII value. This is the only read path for
// plaintext PII, used solely while constructing a response for its owner.
func (s *Service) openField(u *models.User, field string) (string, error) {
	envelope, ok := u.EncryptedFields[field]
	if !ok {
		return "", nil
	}
	value, err := s.cipher.OpenString(envelope, aad(u.ID.String(), field))
	if err != nil {
		s.logger.Error("field decryption failed",
			"identity_id", u.ID.String(),
			"field", field,
		)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
	return value, nil
}
