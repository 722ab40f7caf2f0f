// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// Scheme identifies the hash scheme a stored credential was derived with.
type Scheme string

const (
	// SchemeArgon2id is the slow, self-salting scheme used for all newly
	// derived credentials.
	SchemeArgon2id Scheme = "argon2id"

	// SchemeLegacySHA256 is the unsalted fast digest carried over from the
	// pre-migration user store. Verification only; never derived anew.
	SchemeLegacySHA256 Scheme = "sha256"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

const legacyDigestLen = sha256.Size * 2 // hex-encoded

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// IdentifyScheme inspects a stored hash and reports which scheme produced
// it. Records written before the scheme column existed carry no tag, so
// the format itself is the source of truth.
func IdentifyScheme(stored string) (Scheme, error) {
	if strings.HasPrefix(stored, "$argon2id$") {
		return SchemeArgon2id, nil
	}
	if len(stored) == legacyDigestLen && isLowerHex(stored) {
		return SchemeLegacySHA256, nil
	}
	return "", oops.Code("AUTH_UNKNOWN_SCHEME").Errorf("unrecognized hash format")
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// PasswordHasher provides password hashing and verification over the
// closed set of supported schemes.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password.
	Hash(password string) (string, error)

	// Verify checks the password against the stored hash, dispatching on
	// the scheme identified from the hash format.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on
	// an unrecognized or malformed hash.
	Verify(password, stored string) (bool, error)

	// NeedsUpgrade returns true if the hash should be re-derived as
	// argon2id on the next successful verification.
	NeedsUpgrade(stored string) bool
}

// Argon2idHasher implements PasswordHasher. New hashes are always
// argon2id; legacy SHA-256 digests are accepted for verification only.
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// Encode as PHC string format
	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify checks the password against the stored hash.
func (h *Argon2idHasher) Verify(password, stored string) (bool, error) {
	scheme, err := IdentifyScheme(stored)
	if err != nil {
		return false, err
	}
	if scheme == SchemeLegacySHA256 {
		return verifyLegacy(password, stored), nil
	}
	return verifyArgon2id(password, stored)
}

// verifyLegacy recomputes the unsalted SHA-256 digest and compares in
// constant time.
func verifyLegacy(password, stored string) bool {
	sum := sha256.Sum256([]byte(password))
	digest := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(digest), []byte(stored)) == 1
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	// Validate threads fits in uint8 to prevent silent truncation
	if threads > 255 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d exceeds uint8 max", threads)
	}

	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", keyLen)
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	if subtle.ConstantTimeCompare(computedHash, expectedHash) == 1 {
		return true, nil
	}

	return false, nil
}

// NeedsUpgrade returns true if the hash is not argon2id (i.e., a legacy
// SHA-256 digest).
func (h *Argon2idHasher) NeedsUpgrade(stored string) bool {
	return !strings.HasPrefix(stored, "$argon2id$")
}
