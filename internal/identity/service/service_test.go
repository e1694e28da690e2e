package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"keyward/internal/fieldcrypt"
	"keyward/internal/identity/models"
	"keyward/internal/identity/service/mocks"
	"keyward/internal/jwttoken"
	"keyward/internal/password"
	"keyward/internal/ratelimit"
	dErrors "keyward/pkg/domain-errors"
	"keyward/pkg/platform/sentinel"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const testClientKey = "203.0.113.7"

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	users   *mocks.MockUserStore
	auditor *mocks.MockAuditRecorder
	hasher  *password.Hasher
	cipher  *fieldcrypt.Cipher
	tokens  *jwttoken.Service
	service *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.users = mocks.NewMockUserStore(s.ctrl)
	s.auditor = mocks.NewMockAuditRecorder(s.ctrl)
	s.auditor.EXPECT().Record(gomock.Any(), gomock.Any()).AnyTimes()

	var err error
	s.hasher, err = password.NewHasher(password.Params{
		MemoryKiB:   8 * 1024,
		Time:        2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	s.Require().NoError(err)

	key := make([]byte, fieldcrypt.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	s.cipher, err = fieldcrypt.New(key)
	s.Require().NoError(err)

	s.tokens, err = jwttoken.New([]byte("suite-signing-key"), "keyward", 15*time.Minute)
	s.Require().NoError(err)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryBucketStore(), 1000, time.Minute)
	s.service = New(s.users, s.hasher, s.cipher, s.tokens, limiter, slog.Default(),
		WithAuditRecorder(s.auditor))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) registerRequest() models.RegisterRequest {
	return models.RegisterRequest{
		Email:     "jane@example.com",
		Username:  "jane",
		FirstName: "Jane",
		LastName:  "Doe",
		Password:  "correct horse battery",
	}
}

// storedUser builds a persisted record with a real hash of password.
func (s *ServiceSuite) storedUser(email, pass string) *models.User {
	hash, err := s.hasher.Hash([]byte(pass))
	s.Require().NoError(err)
	return &models.User{
		ID:              uuid.New(),
		EmailHash:       models.LookupHash(email),
		UsernameHash:    models.LookupHash("jane"),
		PasswordHash:    hash,
		EncryptedFields: map[string]string{},
	}
}

func (s *ServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("creates record and issues a valid token", func() {
		var inserted *models.User
		s.users.EXPECT().FindByEmailHash(gomock.Any(), models.LookupHash("jane@example.com")).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), models.LookupHash("jane")).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				inserted = u
				return nil
			})

		result, err := s.service.Register(ctx, testClientKey, s.registerRequest())
		s.Require().NoError(err)
		s.Require().NotNil(inserted)
		s.Equal(inserted.ID.String(), result.IdentityID)

		subject, err := s.service.ValidateToken(ctx, result.Token)
		s.Require().NoError(err)
		s.Equal(result.IdentityID, subject)
	})

	s.Run("persists no plaintext identifiers", func() {
		var inserted *models.User
		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, u *models.User) error {
				inserted = u
				return nil
			})

		_, err := s.service.Register(ctx, testClientKey, s.registerRequest())
		s.Require().NoError(err)

		s.NotEqual("jane@example.com", inserted.EmailHash)
		s.NotEqual("jane", inserted.UsernameHash)
		for field, envelope := range inserted.EncryptedFields {
			s.NotContains(envelope, "jane", "field %s must be sealed", field)
		}
		// The envelopes decrypt back to the submitted values for the owner.
		id := inserted.ID.String()
		got, err := s.cipher.OpenString(inserted.EncryptedFields[models.FieldEmail], aad(id, models.FieldEmail))
		s.Require().NoError(err)
		s.Equal("jane@example.com", got)

		ok, err := s.hasher.Verify([]byte("correct horse battery"), inserted.PasswordHash)
		s.Require().NoError(err)
		s.True(ok)
	})

	s.Run("duplicate email returns conflict", func() {
		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(s.storedUser("jane@example.com", "pw"), nil)

		_, err := s.service.Register(ctx, testClientKey, s.registerRequest())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("duplicate username returns conflict", func() {
		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), gomock.Any()).Return(s.storedUser("other@example.com", "pw"), nil)

		_, err := s.service.Register(ctx, testClientKey, s.registerRequest())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("insert race surfaces as conflict", func() {
		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)

		_, err := s.service.Register(ctx, testClientKey, s.registerRequest())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("validation failure touches no storage", func() {
		req := s.registerRequest()
		req.Password = "short"

		_, err := s.service.Register(ctx, testClientKey, req)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestLogin() {
	ctx := context.Background()

	s.Run("valid credentials issue a token for the same identity", func() {
		user := s.storedUser("jane@example.com", "correct horse battery")
		s.users.EXPECT().FindByEmailHash(gomock.Any(), models.LookupHash("jane@example.com")).Return(user, nil)

		result, err := s.service.Login(ctx, testClientKey, models.LoginRequest{
			Identifier: "Jane@Example.COM", // normalization finds the account
			Password:   "correct horse battery",
		})
		s.Require().NoError(err)
		s.Equal(user.ID.String(), result.IdentityID)

		subject, err := s.service.ValidateToken(ctx, result.Token)
		s.Require().NoError(err)
		s.Equal(user.ID.String(), subject)
	})

	s.Run("unknown identifier and wrong password are indistinguishable", func() {
		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		_, errUnknown := s.service.Login(ctx, testClientKey, models.LoginRequest{
			Identifier: "nobody@example.com",
			Password:   "whatever pass",
		})

		user := s.storedUser("jane@example.com", "correct horse battery")
		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(user, nil)
		_, errMismatch := s.service.Login(ctx, testClientKey, models.LoginRequest{
			Identifier: "jane@example.com",
			Password:   "wrong password",
		})

		s.Require().Error(errUnknown)
		s.Require().Error(errMismatch)
		s.Equal(errUnknown, errMismatch)
		s.True(dErrors.HasCode(errUnknown, dErrors.CodeUnauthorized))
	})

	s.Run("legacy hash is upgraded on successful login", func() {
		weak, err := password.NewHasher(password.Params{
			MemoryKiB:   8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   16,
		})
		s.Require().NoError(err)
		oldHash, err := weak.Hash([]byte("correct horse battery"))
		s.Require().NoError(err)

		user := s.storedUser("jane@example.com", "unused")
		user.PasswordHash = oldHash

		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(user, nil)
		s.users.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, updated *models.User) error {
				s.NotEqual(oldHash, updated.PasswordHash)
				ok, verr := s.hasher.Verify([]byte("correct horse battery"), updated.PasswordHash)
				s.Require().NoError(verr)
				s.True(ok)
				return nil
			})

		_, err = s.service.Login(ctx, testClientKey, models.LoginRequest{
			Identifier: "jane@example.com",
			Password:   "correct horse battery",
		})
		s.Require().NoError(err)
	})

	s.Run("rehash failure does not block a valid login", func() {
		weak, err := password.NewHasher(password.Params{
			MemoryKiB:   8 * 1024,
			Time:        1,
			Parallelism: 1,
			SaltLength:  16,
			KeyLength:   16,
		})
		s.Require().NoError(err)
		oldHash, err := weak.Hash([]byte("correct horse battery"))
		s.Require().NoError(err)

		user := s.storedUser("jane@example.com", "unused")
		user.PasswordHash = oldHash

		s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(user, nil)
		s.users.EXPECT().Update(gomock.Any(), gomock.Any()).Return(sentinel.ErrUnavailable)

		_, err = s.service.Login(ctx, testClientKey, models.LoginRequest{
			Identifier: "jane@example.com",
			Password:   "correct horse battery",
		})
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestChangePassword() {
	ctx := context.Background()

	s.Run("wrong old password refuses and leaves the record alone", func() {
		user := s.storedUser("jane@example.com", "current pass")
		s.users.EXPECT().FindByID(gomock.Any(), user.ID.String()).Return(user, nil)
		// No Update expectation: a persisted write would fail the test.

		err := s.service.ChangePassword(ctx, testClientKey, user.ID.String(), models.ChangePasswordRequest{
			OldPassword: "not the current pass",
			NewPassword: "brand new pass",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("correct old password persists a hash of the new one", func() {
		user := s.storedUser("jane@example.com", "current pass")
		s.users.EXPECT().FindByID(gomock.Any(), user.ID.String()).Return(user, nil)
		s.users.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, updated *models.User) error {
				ok, err := s.hasher.Verify([]byte("brand new pass"), updated.PasswordHash)
				s.Require().NoError(err)
				s.True(ok)
				return nil
			})

		err := s.service.ChangePassword(ctx, testClientKey, user.ID.String(), models.ChangePasswordRequest{
			OldPassword: "current pass",
			NewPassword: "brand new pass",
		})
		s.Require().NoError(err)
	})

	s.Run("unknown identity maps to the unified credentials error", func() {
		s.users.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		err := s.service.ChangePassword(ctx, testClientKey, uuid.NewString(), models.ChangePasswordRequest{
			OldPassword: "current pass",
			NewPassword: "brand new pass",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestChangeUsername() {
	ctx := context.Background()

	s.Run("updates envelope and lookup hash", func() {
		user := s.storedUser("jane@example.com", "pw")
		s.users.EXPECT().FindByID(gomock.Any(), user.ID.String()).Return(user, nil)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), models.LookupHash("janedoe")).Return(nil, sentinel.ErrNotFound)
		s.users.EXPECT().Update(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, updated *models.User) error {
				s.Equal(models.LookupHash("janedoe"), updated.UsernameHash)
				got, err := s.cipher.OpenString(
					updated.EncryptedFields[models.FieldUsername],
					aad(user.ID.String(), models.FieldUsername),
				)
				s.Require().NoError(err)
				s.Equal("janedoe", got)
				return nil
			})

		err := s.service.ChangeUsername(ctx, testClientKey, user.ID.String(), models.ChangeUsernameRequest{Username: "janedoe"})
		s.Require().NoError(err)
	})

	s.Run("name held by another account is a conflict", func() {
		user := s.storedUser("jane@example.com", "pw")
		holder := s.storedUser("other@example.com", "pw")
		s.users.EXPECT().FindByID(gomock.Any(), user.ID.String()).Return(user, nil)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), gomock.Any()).Return(holder, nil)

		err := s.service.ChangeUsername(ctx, testClientKey, user.ID.String(), models.ChangeUsernameRequest{Username: "taken"})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("own current name is a no-op", func() {
		user := s.storedUser("jane@example.com", "pw")
		s.users.EXPECT().FindByID(gomock.Any(), user.ID.String()).Return(user, nil)
		s.users.EXPECT().FindByUsernameHash(gomock.Any(), gomock.Any()).Return(user, nil)

		err := s.service.ChangeUsername(ctx, testClientKey, user.ID.String(), models.ChangeUsernameRequest{Username: "jane"})
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestProfile() {
	ctx := context.Background()

	s.Run("decrypts the caller's fields", func() {
		user := s.storedUser("jane@example.com", "pw")
		id := user.ID.String()
		for field, value := range map[string]string{
			models.FieldEmail:     "jane@example.com",
			models.FieldUsername:  "jane",
			models.FieldFirstName: "Jane",
			models.FieldLastName:  "Doe",
		} {
			sealed, err := s.cipher.SealString(value, aad(id, field))
			s.Require().NoError(err)
			user.EncryptedFields[field] = sealed
		}
		s.users.EXPECT().FindByID(gomock.Any(), id).Return(user, nil)

		profile, err := s.service.Profile(ctx, id)
		s.Require().NoError(err)
		s.Equal("jane@example.com", profile.Email)
		s.Equal("jane", profile.Username)
		s.Equal("Jane", profile.FirstName)
		s.Equal("Doe", profile.LastName)
	})

	s.Run("unknown identity is not found", func() {
		s.users.EXPECT().FindByID(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Profile(ctx, uuid.NewString())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("tampered envelope fails closed", func() {
		user := s.storedUser("jane@example.com", "pw")
		id := user.ID.String()
		sealed, err := s.cipher.SealString("jane@example.com", aad(id, models.FieldEmail))
		s.Require().NoError(err)
		// Envelope re-homed under a different record must not decrypt.
		user.EncryptedFields[models.FieldEmail] = sealed
		user.ID = uuid.New()
		s.users.EXPECT().FindByID(gomock.Any(), user.ID.String()).Return(user, nil)

		_, err = s.service.Profile(ctx, user.ID.String())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestValidateToken() {
	ctx := context.Background()

	s.Run("expired token is unauthorized", func() {
		past := time.Now().Add(-time.Hour)
		expiredIssuer, err := jwttoken.New([]byte("suite-signing-key"), "keyward", time.Minute,
			jwttoken.WithClock(func() time.Time { return past }))
		s.Require().NoError(err)
		token, err := expiredIssuer.Issue(uuid.NewString())
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(ctx, token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("foreign signature is unauthorized", func() {
		foreign, err := jwttoken.New([]byte("some-other-key"), "keyward", time.Minute)
		s.Require().NoError(err)
		token, err := foreign.Issue(uuid.NewString())
		s.Require().NoError(err)

		_, err = s.service.ValidateToken(ctx, token)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("garbage is unauthorized", func() {
		_, err := s.service.ValidateToken(ctx, "not.a.token")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestRateLimiting() {
	ctx := context.Background()

	// A dedicated service with a limit of 2 per minute.
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryBucketStore(), 2, time.Minute)
	svc := New(s.users, s.hasher, s.cipher, s.tokens, limiter, slog.Default(),
		WithAuditRecorder(s.auditor))

	s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound).Times(2)

	req := models.LoginRequest{Identifier: "jane@example.com", Password: "whatever pass"}
	for i := 0; i < 2; i++ {
		_, err := svc.Login(ctx, testClientKey, req)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized), "admitted calls reach credential checking")
	}

	// The third call in the window must be throttled before any lookup.
	_, err := svc.Login(ctx, testClientKey, req)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))

	// A different client key is unaffected.
	s.users.EXPECT().FindByEmailHash(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	_, err = svc.Login(ctx, "198.51.100.2", models.LoginRequest{Identifier: "john@example.com", Password: "whatever pass"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
