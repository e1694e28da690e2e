// Package fieldcrypt encrypts individual record fields with AES-256-GCM.
//
// Each call produces an independent envelope (12-byte nonce ‖ ciphertext ‖
// 16-byte tag) so a single field can be rewritten without touching its
// siblings. The key is process-wide and fixed, which makes nonce freshness
// the sole defense against nonce reuse: nonces always come from crypto/rand.
package fieldcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize is the required key length (AES-256).
const KeySize = 32

const nonceSize = 12

// ErrAuthentication is returned when an envelope's tag does not verify.
// This means tampering or a wrong key, never absence of data, and callers
// must keep it distinct from not-found conditions.
var ErrAuthentication = errors.New("fieldcrypt: authentication tag mismatch")

// Cipher performs authenticated field encryption under one process-wide key.
// Safe for concurrent use after construction.
type Cipher struct {
	aead cipher.AEAD
	key  []byte
}

// New copies key (which must be exactly KeySize bytes) and prepares the AEAD.
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("fieldcrypt: key must be %d bytes, got %d", KeySize, len(key))
	}
	owned := make([]byte, KeySize)
	copy(owned, key)

	block, err := aes.NewCipher(owned)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("fieldcrypt: init gcm: %w", err)
	}
	return &Cipher{aead: aead, key: owned}, nil
}

// Seal encrypts plaintext and returns the envelope. associatedData is
// authenticated but not encrypted; pass the same bytes to Open.
func (c *Cipher) Seal(plaintext, associatedData []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("fieldcrypt: generate nonce: %w", err)
	}
	// Seal appends ciphertext‖tag after the nonce prefix.
	return c.aead.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open splits and decrypts an envelope produced by Seal. Tag verification
// failure returns ErrAuthentication.
func (c *Cipher) Open(envelope, associatedData []byte) ([]byte, error) {
	if len(envelope) < nonceSize+c.aead.Overhead() {
		return nil, ErrAuthentication
	}
	nonce, sealed := envelope[:nonceSize], envelope[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, associatedData)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// SealString encrypts a string field and base64-encodes the envelope for
// storage in text columns.
func (c *Cipher) SealString(plaintext string, associatedData []byte) (string, error) {
	env, err := c.Seal([]byte(plaintext), associatedData)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(env), nil
}

// OpenString reverses SealString.
func (c *Cipher) OpenString(encoded string, associatedData []byte) (string, error) {
	env, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrAuthentication
	}
	plaintext, err := c.Open(env, associatedData)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// Close zeroes the key copy. The AEAD retains expanded round keys in its own
// state, so this is best effort within what the runtime allows.
func (c *Cipher) Close() {
	for i := range c.key {
		c.key[i] = 0
	}
}
