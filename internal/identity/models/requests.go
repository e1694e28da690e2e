package models

import (
	"strings"

	dErrors "keyward/pkg/domain-errors"
	"keyward/pkg/email"
)

// Field constraints enforced before any cryptographic work happens.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 512
	MaxNameLength     = 100
	MinUsernameLength = 3
	MaxUsernameLength = 64
)

// RegisterRequest carries the inputs of a registration flow.
type RegisterRequest struct {
	Email     string
	Username  string
	FirstName string
	LastName  string
	Password  string
}

// Normalize trims and canonicalizes fields prior to validation.
func (r *RegisterRequest) Normalize() {
	r.Email = email.Normalize(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
}

// Validate checks field constraints. Password content is never inspected
// beyond length.
func (r *RegisterRequest) Validate() error {
	if !email.Valid(r.Email) {
		return dErrors.New(dErrors.CodeValidation, "email is invalid")
	}
	if err := validateUsername(r.Username); err != nil {
		return err
	}
	if err := validateName(r.FirstName, "firstname"); err != nil {
		return err
	}
	if err := validateName(r.LastName, "lastname"); err != nil {
		return err
	}
	return validatePassword(r.Password)
}

// LoginRequest carries the inputs of a login flow. Identifier is the email
// address the account registered with.
type LoginRequest struct {
	Identifier string
	Password   string
}

func (r *LoginRequest) Normalize() {
	r.Identifier = email.Normalize(r.Identifier)
}

func (r *LoginRequest) Validate() error {
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeValidation, "identifier is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeValidation, "password is required")
	}
	return nil
}

// ChangePasswordRequest carries the inputs of a password change.
type ChangePasswordRequest struct {
	OldPassword string
	NewPassword string
}

func (r *ChangePasswordRequest) Validate() error {
	if r.OldPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "old password is required")
	}
	return validatePassword(r.NewPassword)
}

// ChangeUsernameRequest carries the inputs of a username change.
type ChangeUsernameRequest struct {
	Username string
}

func (r *ChangeUsernameRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

func (r *ChangeUsernameRequest) Validate() error {
	return validateUsername(r.Username)
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters long")
	}
	if len(password) > MaxPasswordLength {
		return dErrors.New(dErrors.CodeValidation, "password is too long")
	}
	return nil
}

func validateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return dErrors.New(dErrors.CodeValidation, "username must be between 3 and 64 characters")
	}
	return nil
}

func validateName(name, field string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if len(name) > MaxNameLength {
		return dErrors.New(dErrors.CodeValidation, field+" is too long")
	}
	return nil
}
