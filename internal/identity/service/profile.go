package service

import (
	"context"
	"errors"
	"time"

	"keyward/internal/identity/models"
	dErrors "keyward/pkg/domain-errors"
	"keyward/pkg/platform/sentinel"
)

// Profile is the decrypted view of a credential record, built only for the
// record's owner. It exists transiently in the response; nothing decrypted
// is ever written back to storage.
type Profile struct {
	IdentityID string
	Email      string
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Profile decrypts the caller's own PII fields for response construction.
func (s *Service) Profile(ctx context.Context, identityID string) (*Profile, error) {
	user, err := s.users.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "internal error")
	}

	p := &Profile{
		IdentityID: user.ID.String(),
		CreatedAt:  user.CreatedAt,
		UpdatedAt:  user.UpdatedAt,
	}
	for field, dst := range map[string]*string{
		models.FieldEmail:     &p.Email,
		models.FieldUsername:  &p.Username,
		models.FieldFirstName: &p.FirstName,
		models.FieldLastName:  &p.LastName,
	} {
		value, err := s.openField(user, field)
		if err != nil {
			return nil, err
		}
		*dst = value
	}
	return p, nil
}
