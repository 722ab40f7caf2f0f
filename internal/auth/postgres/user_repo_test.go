// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annolab/annolab/internal/auth"
	"github.com/annolab/annolab/internal/auth/postgres"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func testUser(t *testing.T) *auth.User {
	t.Helper()
	user, err := auth.NewUser("alice", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", auth.SchemeArgon2id, auth.RoleTester, "")
	require.NoError(t, err)
	return user
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts user", func(t *testing.T) {
		mock := newMockPool(t)
		user := testUser(t)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(
				user.ID.String(),
				user.Username,
				user.PasswordHash,
				string(user.Scheme),
				string(user.Role),
				user.ExternalID,
				user.PasswordChanged,
				user.CreatedAt,
				user.LastLogin,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := postgres.NewUserRepository(mock).Create(ctx, user)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate user", func(t *testing.T) {
		mock := newMockPool(t)
		user := testUser(t)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(
				user.ID.String(),
				user.Username,
				user.PasswordHash,
				string(user.Scheme),
				string(user.Role),
				user.ExternalID,
				user.PasswordChanged,
				user.CreatedAt,
				user.LastLogin,
			).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := postgres.NewUserRepository(mock).Create(ctx, user)
		assert.ErrorIs(t, err, auth.ErrDuplicateUser)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other database errors pass through", func(t *testing.T) {
		mock := newMockPool(t)
		user := testUser(t)

		mock.ExpectExec(`INSERT INTO users`).
			WithArgs(
				user.ID.String(),
				user.Username,
				user.PasswordHash,
				string(user.Scheme),
				string(user.Role),
				user.ExternalID,
				user.PasswordChanged,
				user.CreatedAt,
				user.LastLogin,
			).
			WillReturnError(errors.New("connection refused"))

		err := postgres.NewUserRepository(mock).Create(ctx, user)
		require.Error(t, err)
		assert.NotErrorIs(t, err, auth.ErrDuplicateUser)
	})
}

func TestUserRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("returns user", func(t *testing.T) {
		mock := newMockPool(t)
		id := ulid.Make()

		rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "scheme", "role", "user_id", "password_changed", "created_at", "last_login"}).
			AddRow(id.String(), "alice", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "argon2id", "tester", "alice", true, now, (*time.Time)(nil))
		mock.ExpectQuery(`WHERE username = \$1`).
			WithArgs("alice").
			WillReturnRows(rows)

		user, err := postgres.NewUserRepository(mock).GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.Equal(t, "alice", user.Username)
		assert.Equal(t, auth.SchemeArgon2id, user.Scheme)
		assert.True(t, user.PasswordChanged)
		assert.Nil(t, user.LastLogin)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing user maps to not found", func(t *testing.T) {
		mock := newMockPool(t)

		rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "scheme", "role", "user_id", "password_changed", "created_at", "last_login"})
		mock.ExpectQuery(`WHERE username = \$1`).
			WithArgs("ghost").
			WillReturnRows(rows)

		_, err := postgres.NewUserRepository(mock).GetByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("untagged row falls back to hash format", func(t *testing.T) {
		mock := newMockPool(t)
		id := ulid.Make()
		legacy := "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"

		rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "scheme", "role", "user_id", "password_changed", "created_at", "last_login"}).
			AddRow(id.String(), "olduser", legacy, "", "tester", "olduser", false, now, (*time.Time)(nil))
		mock.ExpectQuery(`WHERE username = \$1`).
			WithArgs("olduser").
			WillReturnRows(rows)

		user, err := postgres.NewUserRepository(mock).GetByUsername(ctx, "olduser")
		require.NoError(t, err)
		assert.Equal(t, auth.SchemeLegacySHA256, user.Scheme)
	})
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	id := ulid.Make()
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "scheme", "role", "user_id", "password_changed", "created_at", "last_login"}).
		AddRow(id.String(), "alice", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "argon2id", "admin", "alice", true, now, &now)
	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs(id.String()).
		WillReturnRows(rows)

	user, err := postgres.NewUserRepository(mock).GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, now, *user.LastLogin)
}

func TestUserRepository_UpdateCredential(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("unguarded update applies", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`UPDATE users`).
			WithArgs(id.String(), "newhash", "argon2id", true, "").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := postgres.NewUserRepository(mock).UpdateCredential(ctx, id, auth.CredentialUpdate{
			Hash:        "newhash",
			Scheme:      auth.SchemeArgon2id,
			MarkChanged: true,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guarded update that lost the race is a no-op", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`UPDATE users`).
			WithArgs(id.String(), "newhash", "argon2id", false, "sha256").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := postgres.NewUserRepository(mock).UpdateCredential(ctx, id, auth.CredentialUpdate{
			Hash:         "newhash",
			Scheme:       auth.SchemeArgon2id,
			OnlyIfScheme: auth.SchemeLegacySHA256,
		})
		assert.NoError(t, err, "losing the upgrade race is not an error")
	})

	t.Run("unguarded update on missing user is not found", func(t *testing.T) {
		mock := newMockPool(t)

		mock.ExpectExec(`UPDATE users`).
			WithArgs(id.String(), "newhash", "argon2id", true, "").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := postgres.NewUserRepository(mock).UpdateCredential(ctx, id, auth.CredentialUpdate{
			Hash:        "newhash",
			Scheme:      auth.SchemeArgon2id,
			MarkChanged: true,
		})
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_TouchLastLogin(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()
	now := time.Now().UTC()

	t.Run("updates last_login", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET last_login`).
			WithArgs(id.String(), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := postgres.NewUserRepository(mock).TouchLastLogin(ctx, id, now)
		assert.NoError(t, err)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE users SET last_login`).
			WithArgs(id.String(), now).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := postgres.NewUserRepository(mock).TouchLastLogin(ctx, id, now)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserRepository_List(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "username", "password_hash", "scheme", "role", "user_id", "password_changed", "created_at", "last_login"}).
		AddRow(ulid.Make().String(), "alice", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "argon2id", "tester", "alice", true, now, (*time.Time)(nil)).
		AddRow(ulid.Make().String(), "bob", "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA", "argon2id", "admin", "bob", false, now, (*time.Time)(nil))
	mock.ExpectQuery(`ORDER BY username`).
		WillReturnRows(rows)

	users, err := postgres.NewUserRepository(mock).List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func TestUserRepository_Count(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	n, err := postgres.NewUserRepository(mock).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := ulid.Make()

	t.Run("deletes user", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))

		err := postgres.NewUserRepository(mock).Delete(ctx, id)
		assert.NoError(t, err)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := postgres.NewUserRepository(mock).Delete(ctx, id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}
