// Package audit records security-relevant events: registrations, login
// outcomes, credential changes, throttling. Events are append-only and must
// never contain passwords, hashes, tokens, or key material.
package audit

import "time"

// Actions recorded by the identity service.
const (
	ActionUserRegistered    = "user.registered"
	ActionLoginSucceeded    = "login.succeeded"
	ActionLoginFailed       = "login.failed"
	ActionPasswordChanged   = "password.changed"
	ActionUsernameChanged   = "username.changed"
	ActionRequestThrottled  = "request.throttled"
	ActionTokenRejected     = "token.rejected"
	ActionCredentialRefused = "credential.change.refused"
)

// Event is emitted from domain logic to capture one security-relevant
// action. Keep it transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Action    string
	// Subject is the identity ID the event concerns, when known.
	Subject string
	// ClientKey is the rate-governor key (client address, possibly
	// address+identifier-hash for login), never a raw identifier.
	ClientKey string
	Reason    string
}
