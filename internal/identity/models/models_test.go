package models

import (
	"strings"
	"testing"

	dErrors "keyward/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupHash(t *testing.T) {
	base := LookupHash("jane@example.com")
	assert.Len(t, base, 64, "hex-encoded SHA-256")

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, base, LookupHash("jane@example.com"))
	})

	t.Run("normalizes case and whitespace", func(t *testing.T) {
		assert.Equal(t, base, LookupHash("  Jane@Example.COM  "))
	})

	t.Run("distinct inputs diverge", func(t *testing.T) {
		assert.NotEqual(t, base, LookupHash("john@example.com"))
	})
}

func TestRegisterRequestValidation(t *testing.T) {
	valid := func() RegisterRequest {
		return RegisterRequest{
			Email:     "jane@example.com",
			Username:  "jane",
			FirstName: "Jane",
			LastName:  "Doe",
			Password:  "correct horse",
		}
	}

	t.Run("accepts well-formed input", func(t *testing.T) {
		r := valid()
		r.Normalize()
		require.NoError(t, r.Validate())
	})

	t.Run("normalize lowercases email and trims fields", func(t *testing.T) {
		r := valid()
		r.Email = "  Jane@Example.COM "
		r.FirstName = " Jane "
		r.Normalize()
		assert.Equal(t, "jane@example.com", r.Email)
		assert.Equal(t, "Jane", r.FirstName)
	})

	cases := map[string]func(*RegisterRequest){
		"bad email":         func(r *RegisterRequest) { r.Email = "not-an-email" },
		"empty email":       func(r *RegisterRequest) { r.Email = "" },
		"short username":    func(r *RegisterRequest) { r.Username = "ab" },
		"long username":     func(r *RegisterRequest) { r.Username = strings.Repeat("u", MaxUsernameLength+1) },
		"missing firstname": func(r *RegisterRequest) { r.FirstName = "" },
		"missing lastname":  func(r *RegisterRequest) { r.LastName = "" },
		"long firstname":    func(r *RegisterRequest) { r.FirstName = strings.Repeat("n", MaxNameLength+1) },
		"short password":    func(r *RegisterRequest) { r.Password = "seven77" },
		"long password":     func(r *RegisterRequest) { r.Password = strings.Repeat("p", MaxPasswordLength+1) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid()
			mutate(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func TestLoginRequestValidation(t *testing.T) {
	t.Run("requires identifier and password", func(t *testing.T) {
		r := LoginRequest{Password: "correct horse"}
		assert.True(t, dErrors.HasCode(r.Validate(), dErrors.CodeValidation))

		r = LoginRequest{Identifier: "jane@example.com"}
		assert.True(t, dErrors.HasCode(r.Validate(), dErrors.CodeValidation))
	})

	t.Run("accepts complete input", func(t *testing.T) {
		r := LoginRequest{Identifier: " Jane@Example.com ", Password: "correct horse"}
		r.Normalize()
		assert.Equal(t, "jane@example.com", r.Identifier)
		assert.NoError(t, r.Validate())
	})
}

func TestChangePasswordRequestValidation(t *testing.T) {
	assert.NoError(t, (&ChangePasswordRequest{OldPassword: "old pass", NewPassword: "new pass!"}).Validate())
	assert.Error(t, (&ChangePasswordRequest{NewPassword: "new pass!"}).Validate())
	assert.Error(t, (&ChangePasswordRequest{OldPassword: "old pass", NewPassword: "short"}).Validate())
}

func TestChangeUsernameRequestValidation(t *testing.T) {
	r := ChangeUsernameRequest{Username: " jane "}
	r.Normalize()
	assert.Equal(t, "jane", r.Username)
	assert.NoError(t, r.Validate())

	assert.Error(t, (&ChangeUsernameRequest{Username: "ab"}).Validate())
}

func TestUserClone(t *testing.T) {
	u := &User{
		EncryptedFields: map[string]string{FieldEmail: "sealed"},
	}
	c := u.Clone()
	c.EncryptedFields[FieldEmail] = "mutated"
	assert.Equal(t, "sealed", u.EncryptedFields[FieldEmail])

	var nilUser *User
	assert.Nil(t, nilUser.Clone())
}
