// Package password derives and verifies password hashes with Argon2id.
//
// Hashes are encoded as PHC strings ($argon2id$v=19$m=...,t=...,p=...$salt$digest)
// so every parameter needed for verification travels with the hash itself.
// Costs can be raised at any time without invalidating stored hashes:
// verification always replays the parameters embedded in the string.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned by Verify when the stored hash string cannot
// be parsed. A well-formed hash that simply does not match returns
// (false, nil) instead.
var ErrMalformedHash = errors.New("malformed password hash")

const algorithmID = "argon2id"

// Safety floors. Params below these are a misconfiguration, not a preference.
const (
	minMemoryKiB   uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
)

// Params are the Argon2id cost parameters used for new hashes.
type Params struct {
	MemoryKiB   uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultParams follows the second RFC 9106 recommendation (64 MiB, t=3),
// suitable for interactive logins.
func DefaultParams() Params {
	return Params{
		MemoryKiB:   64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher hashes and verifies passwords. Safe for concurrent use; it holds no
// mutable state.
type Hasher struct {
	params Params
}

// NewHasher validates the cost parameters against the safety floors.
func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.MemoryKiB < minMemoryKiB:
		return nil, fmt.Errorf("argon2 memory %d KiB below floor %d", p.MemoryKiB, minMemoryKiB)
	case p.Time < minTimeCost:
		return nil, fmt.Errorf("argon2 time cost %d below floor %d", p.Time, minTimeCost)
	case p.Parallelism < minParallelism:
		return nil, fmt.Errorf("argon2 parallelism %d below floor %d", p.Parallelism, minParallelism)
	case p.SaltLength < minSaltLength:
		return nil, fmt.Errorf("argon2 salt length %d below floor %d", p.SaltLength, minSaltLength)
	case p.KeyLength < minKeyLength:
		return nil, fmt.Errorf("argon2 key length %d below floor %d", p.KeyLength, minKeyLength)
	}
	return &Hasher{params: p}, nil
}

// Hash derives an Argon2id hash of password under a fresh random salt and
// returns it as a PHC string. It never fails on password content.
func (h *Hasher) Hash(password []byte) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := argon2.IDKey(password, salt, h.params.Time, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify re-derives the digest using the parameters and salt embedded in
// encoded and compares in constant time. A mismatch is (false, nil); only an
// unparseable hash string is an error.
func (h *Hasher) Verify(password []byte, encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(password, parsed.salt, parsed.time, parsed.memoryKiB, parsed.parallelism, uint32(len(parsed.digest)))

	return subtle.ConstantTimeCompare(computed, parsed.digest) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker costs than the
// hasher's current parameters. Callers rehash on next successful login.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	if parsed.memoryKiB < h.params.MemoryKiB || parsed.time < h.params.Time {
		return true, nil
	}
	if parsed.parallelism < h.params.Parallelism {
		return true, nil
	}
	return false, nil
}

type phcHash struct {
	memoryKiB   uint32
	time        uint32
	parallelism uint8
	salt        []byte
	digest      []byte
}

func parsePHC(encoded string) (*phcHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedHash
	}
	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("%w: bad version field", ErrMalformedHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrMalformedHash, version)
	}

	out := &phcHash{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		v, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}
		switch kv[0] {
		case "m":
			out.memoryKiB = uint32(v)
		case "t":
			out.time = uint32(v)
		case "p":
			if v > 255 {
				return nil, fmt.Errorf("%w: parallelism out of range", ErrMalformedHash)
			}
			out.parallelism = uint8(v)
		default:
			return nil, fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, kv[0])
		}
	}
	if out.memoryKiB == 0 || out.time == 0 || out.parallelism == 0 {
		return nil, fmt.Errorf("%w: missing cost parameters", ErrMalformedHash)
	}

	var err error
	if out.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", ErrMalformedHash)
	}
	if len(out.salt) < int(minSaltLength) {
		return nil, fmt.Errorf("%w: salt too short", ErrMalformedHash)
	}
	if out.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: bad digest encoding", ErrMalformedHash)
	}
	if len(out.digest) == 0 {
		return nil, fmt.Errorf("%w: empty digest", ErrMalformedHash)
	}
	return out, nil
}
