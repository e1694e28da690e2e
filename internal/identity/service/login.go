package service

import (
	"context"
	"errors"

	"keyward/internal/audit"
	"keyward/internal/identity/models"
	dErrors "keyward/pkg/domain-errors"
	"keyward/pkg/platform/sentinel"
)

// LoginResult is the success payload of a login.
type LoginResult struct {
	IdentityID string
	Token      string
}

// Login verifies credentials and issues a session token. Lookup miss and
// password mismatch return the identical error. Admission runs per client
// address and per claimed identifier, so a distributed guessing campaign
// against one account is throttled no matter how many addresses it uses.
func (s *Service) Login(ctx context.Context, clientKey string, req models.LoginRequest) (*LoginResult, error) {
	req.Normalize()
	identifierHash := models.LookupHash(req.Identifier)

	if err := s.admit(ctx, "ip:"+clientKey, "login:"+identifierHash); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmailHash(ctx, identifierHash)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.loginFailed(ctx, clientKey, "", "unknown identifier")
			return nil, errInvalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	ok, err := s.hasher.Verify([]byte(req.Password), user.PasswordHash)
	if err != nil {
		// A stored hash we cannot parse is corruption, not a bad password.
		s.logger.Error("stored password hash unreadable", "identity_id", user.ID.String())
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
	if !ok {
		s.loginFailed(ctx, clientKey, user.ID.String(), "password mismatch")
		return nil, errInvalidCredentials
	}

	s.maybeRehash(ctx, user, req.Password)

	token, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		s.logger.Error("token issuance failed", "identity_id", user.ID.String(), "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues("success").Inc()
	}
	s.record(ctx, audit.Event{
		Action:    audit.ActionLoginSucceeded,
		Subject:   user.ID.String(),
		ClientKey: clientKey,
	})

	return &LoginResult{IdentityID: user.ID.String(), Token: token}, nil
}

func (s *Service) loginFailed(ctx context.Context, clientKey, subject, reason string) {
	if s.metrics != nil {
		s.metrics.Logins.WithLabelValues("failure").Inc()
	}
	s.record(ctx, audit.Event{
		Action:    audit.ActionLoginFailed,
		Subject:   subject,
		ClientKey: clientKey,
		Reason:    reason,
	})
}

// maybeRehash upgrades the stored hash when the configured costs have been
// raised since it was created. Best effort: a failed upgrade never blocks a
// valid login.
func (s *Service) maybeRehash(ctx context.Context, user *models.User, plaintext string) {
	needs, err := s.hasher.NeedsRehash(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	newHash, err := s.hasher.Hash([]byte(plaintext))
	if err != nil {
		return
	}
	updated := user.Clone()
	updated.PasswordHash = newHash
	updated.UpdatedAt = s.now()
	if err := s.users.Update(ctx, updated); err != nil {
		s.logger.WarnContext(ctx, "password rehash not persisted", "identity_id", user.ID.String(), "error", err)
		return
	}
	user.PasswordHash = newHash
}
