package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"keyward/internal/audit"
	"keyward/internal/identity/models"
	dErrors "keyward/pkg/domain-errors"
	"keyward/pkg/platform/sentinel"
)

// RegisterResult is the success payload of a registration: the new identity
// and its first session token. No PII comes back; the caller already has it.
type RegisterResult struct {
	IdentityID string
	Token      string
	CreatedAt  time.Time
}

// Register creates a credential record and issues the first session token.
// Field constraints are checked before any cryptographic work, and nothing
// is persisted unless the single store insert succeeds.
func (s *Service) Register(ctx context.Context, clientKey string, req models.RegisterRequest) (*RegisterResult, error) {
	if err := s.admit(ctx, "ip:"+clientKey); err != nil {
		return nil, err
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	emailHash := models.LookupHash(req.Email)
	usernameHash := models.LookupHash(req.Username)

	// Early duplicate checks give clean conflicts; the store's unique
	// constraints still catch the race.
	if _, err := s.users.FindByEmailHash(ctx, emailHash); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
	if _, err := s.users.FindByUsernameHash(ctx, usernameHash); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "username already taken")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	id := uuid.New()
	now := s.now()

	sealed := make(map[string]string, 4)
	for field, value := range map[string]string{
		models.FieldEmail:     req.Email,
		models.FieldUsername:  req.Username,
		models.FieldFirstName: req.FirstName,
		models.FieldLastName:  req.LastName,
	} {
		envelope, err := s.sealField(id.String(), field, value)
		if err != nil {
			return nil, err
		}
		sealed[field] = envelope
	}

	passwordHash, err := s.hasher.Hash([]byte(req.Password))
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	user := &models.User{
		ID:              id,
		EmailHash:       emailHash,
		UsernameHash:    usernameHash,
		PasswordHash:    passwordHash,
		EncryptedFields: sealed,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	token, err := s.tokens.Issue(id.String())
	if err != nil {
		s.logger.Error("token issuance failed", "identity_id", id.String(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	if s.metrics != nil {
		s.metrics.Registrations.Inc()
	}
	s.record(ctx, audit.Event{
		Action:    audit.ActionUserRegistered,
		Subject:   id.String(),
		ClientKey: clientKey,
	})
	s.logger.InfoContext(ctx, "user registered", "identity_id", id.String())

	return &RegisterResult{IdentityID: id.String(), Token: token, CreatedAt: now}, nil
}
