// Package models holds the credential record and request shapes owned by the
// identity service.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Names of the PII fields kept encrypted at rest. Each field is sealed in its
// own envelope so one can be rewritten without re-encrypting the others.
const (
	FieldEmail     = "email"
	FieldUsername  = "username"
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
)

// User is the credential record. Plaintext identifiers are never persisted:
// email and username live only as envelopes in EncryptedFields, with
// deterministic lookup hashes beside them for login and uniqueness checks.
type User struct {
	ID              uuid.UUID
	EmailHash       string
	UsernameHash    string
	PasswordHash    string
	EncryptedFields map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy so in-memory stores never hand out aliased maps.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.EncryptedFields = make(map[string]string, len(u.EncryptedFields))
	for k, v := range u.EncryptedFields {
		out.EncryptedFields[k] = v
	}
	return &out
}

// LookupHash derives the deterministic hash used to find a record by a
// searchable identifier without storing its plaintext. Input is normalized
// the same way requests are, so lookups survive case and whitespace drift.
func LookupHash(identifier string) string {
	normalized := strings.ToLower(strings.TrimSpace(identifier))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
