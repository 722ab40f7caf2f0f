// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annolab/annolab/internal/auth"
)

// legacyDigest produces the unsalted hex digest the pre-migration store
// used.
func legacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func TestHashPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces valid hash", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	})

	t.Run("same password produces different hashes (salt)", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		assert.NotEqual(t, hash1, hash2)
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := hasher.Hash("")
		assert.ErrorIs(t, err, auth.ErrEmptyPassword)
	})
}

func TestVerifyPassword(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("correct password verifies", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("correctpassword", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("incorrect password fails", func(t *testing.T) {
		hash, err := hasher.Hash("correctpassword")
		require.NoError(t, err)

		ok, err := hasher.Verify("wrongpassword", hash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("legacy digest verifies", func(t *testing.T) {
		ok, err := hasher.Verify("hunter2secret", legacyDigest("hunter2secret"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("legacy digest rejects wrong password", func(t *testing.T) {
		ok, err := hasher.Verify("wrongpassword", legacyDigest("hunter2secret"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unrecognized hash format returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "not-a-valid-hash")
		assert.Error(t, err)
	})

	t.Run("uppercase hex is not a legacy digest", func(t *testing.T) {
		_, err := hasher.Verify("password", strings.ToUpper(legacyDigest("password")))
		assert.Error(t, err)
	})

	t.Run("malformed argon2id parameters return error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$mXX$c2FsdA$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("bad salt encoding returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA")
		assert.Error(t, err)
	})

	t.Run("excessive threads value returns error", func(t *testing.T) {
		_, err := hasher.Verify("password", "$argon2id$v=19$m=65536,t=1,p=300$c2FsdA$aGFzaA")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds uint8 max")
	})
}

func TestIdentifyScheme(t *testing.T) {
	tests := []struct {
		name    string
		stored  string
		want    auth.Scheme
		wantErr bool
	}{
		{
			name:   "argon2id PHC string",
			stored: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
			want:   auth.SchemeArgon2id,
		},
		{
			name:   "legacy hex digest",
			stored: legacyDigest("anything"),
			want:   auth.SchemeLegacySHA256,
		},
		{
			name:    "uppercase hex rejected",
			stored:  strings.ToUpper(legacyDigest("anything")),
			wantErr: true,
		},
		{
			name:    "wrong length hex rejected",
			stored:  "abc123",
			wantErr: true,
		},
		{
			name:    "empty string rejected",
			stored:  "",
			wantErr: true,
		},
		{
			name:    "bcrypt-style hash rejected",
			stored:  "$2b$12$abcdefghijklmnopqrstuv",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.IdentifyScheme(tt.stored)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNeedsUpgrade(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	hash, err := hasher.Hash("password123")
	require.NoError(t, err)

	assert.False(t, hasher.NeedsUpgrade(hash))
	assert.True(t, hasher.NeedsUpgrade(legacyDigest("password123")))
}
