package service

import (
	"context"
	"errors"

	"keyward/internal/audit"
	"keyward/internal/identity/models"
	dErrors "keyward/pkg/domain-errors"
	"keyward/pkg/platform/sentinel"
)

// ChangePassword re-verifies the old password, then rehashes and persists
// the new one. A wrong old password leaves the record untouched and returns
// the same unified error as a bad login.
func (s *Service) ChangePassword(ctx context.Context, clientKey, identityID string, req models.ChangePasswordRequest) error {
	if err := s.admit(ctx, "ip:"+clientKey); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return errInvalidCredentials
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	ok, err := s.hasher.Verify([]byte(req.OldPassword), user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "identity_id", identityID)
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}
	if !ok {
		s.record(ctx, audit.Event{
			Action:    audit.ActionCredentialRefused,
			Subject:   identityID,
			ClientKey: clientKey,
			Reason:    "old password mismatch",
		})
		return errInvalidCredentials
	}

	newHash, err := s.hasher.Hash([]byte(req.NewPassword))
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	updated := user.Clone()
	updated.PasswordHash = newHash
	updated.UpdatedAt = s.now()
	if err := s.users.Update(ctx, updated); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	if s.metrics != nil {
		s.metrics.CredentialChanges.WithLabelValues("password").Inc()
	}
	s.record(ctx, audit.Event{
		Action:    audit.ActionPasswordChanged,
		Subject:   identityID,
		ClientKey: clientKey,
	})
	return nil
}

// ChangeUsername validates format and uniqueness, re-encrypts the username
// envelope, and persists it with a fresh lookup hash.
func (s *Service) ChangeUsername(ctx context.Context, clientKey, identityID string, req models.ChangeUsernameRequest) error {
	if err := s.admit(ctx, "ip:"+clientKey); err != nil {
		return err
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	usernameHash := models.LookupHash(req.Username)
	if owner, err := s.users.FindByUsernameHash(ctx, usernameHash); err == nil {
		if owner.ID == user.ID {
			// Same name (possibly different casing): a no-op, not a conflict.
			return nil
		}
		return dErrors.New(dErrors.CodeConflict, "username already taken")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	envelope, err := s.sealField(identityID, models.FieldUsername, req.Username)
	if err != nil {
		return err
	}

	updated := user.Clone()
	updated.UsernameHash = usernameHash
	updated.EncryptedFields[models.FieldUsername] = envelope
	updated.UpdatedAt = s.now()
	if err := s.users.Update(ctx, updated); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "username already taken")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	if s.metrics != nil {
		s.metrics.CredentialChanges.WithLabelValues("username").Inc()
	}
	s.record(ctx, audit.Event{
		Action:    audit.ActionUsernameChanged,
		Subject:   identityID,
		ClientKey: clientKey,
	})
	return nil
}
