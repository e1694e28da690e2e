// Package email normalizes and validates email addresses at the service
// boundary. Normalization must match what LookupHash sees, otherwise the
// same mailbox registers twice under different casing.
package email

import (
	"net/mail"
	"strings"
)

// MaxLength caps addresses at the SMTP path limit.
const MaxLength = 254

// Normalize lowercases and trims an address for hashing and comparison.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Valid reports whether address parses as a bare RFC 5322 address.
// Display names ("Jane <jane@example.com>") are rejected.
func Valid(address string) bool {
	if address == "" || len(address) > MaxLength {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil {
		return false
	}
	return parsed.Address == address
}
