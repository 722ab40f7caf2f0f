// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/annolab/annolab/internal/auth"
)

const userColumns = `id, username, password_hash, scheme, role, user_id, password_changed, created_at, last_login`

// UserRepository implements auth.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (
			id, username, password_hash, scheme, role, user_id,
			password_changed, created_at, last_login
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		user.ID.String(),
		user.Username,
		user.PasswordHash,
		string(user.Scheme),
		string(user.Role),
		user.ExternalID,
		user.PasswordChanged,
		user.CreatedAt,
		user.LastLogin,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USER_DUPLICATE").
				With("username", user.Username).
				Wrap(auth.ErrDuplicateUser)
		}
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByUsername retrieves a user by exact, case-sensitive username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_USERNAME_FAILED").
			With("operation", "get user by username").
			With("username", username).
			Wrap(err)
	}
	return user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id.String())

	user, err := r.scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").
			With("operation", "get user by id").
			With("id", id.String()).
			Wrap(err)
	}
	return user, nil
}

// UpdateCredential atomically replaces hash and scheme in one statement.
// The password_changed flag can only move from false to true, and a
// scheme-guarded update silently no-ops once the guard no longer holds.
func (r *UserRepository) UpdateCredential(ctx context.Context, id ulid.ULID, update auth.CredentialUpdate) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users
		SET password_hash = $2, scheme = $3,
		    password_changed = password_changed OR $4
		WHERE id = $1 AND ($5 = '' OR scheme = $5)
	`,
		id.String(),
		update.Hash,
		string(update.Scheme),
		update.MarkChanged,
		string(update.OnlyIfScheme),
	)
	if err != nil {
		return oops.Code("USER_UPDATE_CREDENTIAL_FAILED").
			With("operation", "update credential").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		if update.OnlyIfScheme != "" {
			// Guard no longer holds: a concurrent login already upgraded
			// this record. Nothing to do.
			return nil
		}
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// TouchLastLogin records the time of a successful login.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE users SET last_login = $2
		WHERE id = $1
	`, id.String(), at)
	if err != nil {
		return oops.Code("USER_TOUCH_LAST_LOGIN_FAILED").
			With("operation", "update last_login").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// List returns all users ordered by username.
func (r *UserRepository) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_SCAN_FAILED").
				With("operation", "scan user row").
				Wrap(err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_ROWS_ERROR").
			With("operation", "iterate user rows").
			Wrap(err)
	}

	return users, nil
}

// Count returns the number of users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	if err != nil {
		return 0, oops.Code("USER_COUNT_FAILED").
			With("operation", "count users").
			Wrap(err)
	}
	return n, nil
}

// Delete removes a user. Session records are removed by the cascade on
// user_sessions.
func (r *UserRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.db.Exec(ctx, `
		DELETE FROM users WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans a single row into a User.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *UserRepository) scanUser(row pgx.Row) (*auth.User, error) {
	var (
		idStr           string
		username        string
		passwordHash    string
		scheme          string
		role            string
		externalID      string
		passwordChanged bool
		createdAt       time.Time
		lastLogin       *time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&passwordHash,
		&scheme,
		&role,
		&externalID,
		&passwordChanged,
		&createdAt,
		&lastLogin,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("USER_SCAN_FAILED").
			With("operation", "scan user").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USER_INVALID_ID").
			With("operation", "parse user id").
			With("id", idStr).
			Wrap(err)
	}

	// Rows written before the scheme column existed carry no tag; fall
	// back to identifying the scheme from the hash itself.
	if scheme == "" {
		if identified, idErr := auth.IdentifyScheme(passwordHash); idErr == nil {
			scheme = string(identified)
		}
	}

	return &auth.User{
		ID:              id,
		Username:        username,
		PasswordHash:    passwordHash,
		Scheme:          auth.Scheme(scheme),
		Role:            auth.Role(role),
		ExternalID:      externalID,
		PasswordChanged: passwordChanged,
		CreatedAt:       createdAt,
		LastLogin:       lastLogin,
	}, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
