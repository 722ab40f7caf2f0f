// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the fixed set of account roles.
type Role string

const (
	// RoleAdmin can manage users and review all annotation batches.
	RoleAdmin Role = "admin"
	// RoleTester annotates the batches assigned to them.
	RoleTester Role = "tester"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTester
}

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// User represents an annotator account.
type User struct {
	ID           ulid.ULID
	Username     string
	PasswordHash string
	Scheme       Scheme
	Role         Role

	// ExternalID is the annotator identifier stamped onto annotation
	// records; it survives account deletion.
	ExternalID string

	// PasswordChanged is false while the account still holds its initial
	// credential. Until a password change succeeds, login yields a
	// provisional session that permits nothing but ChangePassword.
	PasswordChanged bool

	CreatedAt time.Time
	LastLogin *time.Time
}

// NewUser creates a validated User with a fresh ID. New accounts always
// start with PasswordChanged false; only a successful ChangePassword
// flips it.
func NewUser(username, passwordHash string, scheme Scheme, role Role, externalID string) (*User, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("AUTH_INVALID_USER").Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code("AUTH_INVALID_ROLE").
			With("role", string(role)).
			Errorf("role must be admin or tester")
	}
	if externalID == "" {
		externalID = username
	}

	return &User{
		ID:              ulid.Make(),
		Username:        username,
		PasswordHash:    passwordHash,
		Scheme:          scheme,
		Role:            role,
		ExternalID:      externalID,
		PasswordChanged: false,
		CreatedAt:       time.Now().UTC(),
	}, nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// CredentialUpdate describes an atomic replacement of a user's hash and
// scheme. Hash and Scheme are always written together; they are never
// left mismatched.
type CredentialUpdate struct {
	Hash   string
	Scheme Scheme

	// MarkChanged sets password_changed in the same statement. Only the
	// password-change flow sets this; the silent login upgrade never does.
	MarkChanged bool

	// OnlyIfScheme, when non-empty, applies the update only while the
	// stored scheme still matches. The silent upgrade guards on the
	// legacy scheme so two concurrent logins cannot interleave: exactly
	// one rewrite wins and the loser is a no-op.
	OnlyIfScheme Scheme
}

// UserRepository manages user persistence. Implementations must make each
// mutating call atomic at the level of a single row.
type UserRepository interface {
	// Create stores a new user. Returns ErrDuplicateUser if the username
	// is taken.
	Create(ctx context.Context, user *User) error

	// GetByUsername retrieves a user by exact, case-sensitive username.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*User, error)

	// UpdateCredential atomically applies a CredentialUpdate. A guarded
	// update whose scheme precondition no longer holds is a successful
	// no-op.
	UpdateCredential(ctx context.Context, id ulid.ULID, update CredentialUpdate) error

	// TouchLastLogin records the time of a successful login.
	TouchLastLogin(ctx context.Context, id ulid.ULID, at time.Time) error

	// List returns all users ordered by username.
	List(ctx context.Context) ([]*User, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int64, error)

	// Delete removes a user. Their session records are removed with them;
	// annotation records reference ExternalID and are unaffected.
	Delete(ctx context.Context, id ulid.ULID) error
}
