// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// LoginState tags the session produced by a successful login.
type LoginState string

const (
	// StateAuthenticated is a full session.
	StateAuthenticated LoginState = "authenticated"

	// StateForcedChange is a provisional session: the account still holds
	// its initial credential and must change it before doing anything
	// else. Callers gate every other operation on this tag.
	StateForcedChange LoginState = "forced_change"
)

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	User    *User
	Session *SessionRecord
	State   LoginState
}

// Provisional reports whether the session is restricted to ChangePassword.
func (r *LoginResult) Provisional() bool {
	return r.State == StateForcedChange
}

// Service provides authentication operations.
type Service struct {
	users    UserRepository
	sessions SessionRepository
	hasher   PasswordHasher
	logger   *slog.Logger
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, sessions SessionRepository, hasher PasswordHasher) (*Service, error) {
	return NewAuthServiceWithLogger(users, sessions, hasher, slog.Default())
}

// NewAuthServiceWithLogger creates a new Service with a specific logger.
func NewAuthServiceWithLogger(users UserRepository, sessions SessionRepository, hasher PasswordHasher, logger *slog.Logger) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("sessions repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("password hasher is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPS").Errorf("logger is required")
	}
	return &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger,
	}, nil
}

// dummyPasswordHash is used when a user doesn't exist to prevent timing attacks.
// We still run password verification to make response time consistent.
// This is NOT a real credential - it's a fake hash that will never match any password.
//
//nolint:gosec // G101: This is an intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Login authenticates a user and appends a sign-in audit record.
//
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials;
// failed attempts are not audited (explicit policy: only successful
// sign-ins are). If the stored hash uses the legacy scheme, a successful
// verification silently re-derives it as argon2id; the upgrade is best
// effort and retried on a later login if it fails. A failure to write the
// audit record fails the whole login with ErrAuditWriteFailed.
//
// The caller's context is honored up to credential verification. Once the
// password has matched, the remaining steps run detached from caller
// cancellation: a timeout must not roll back a confirmed authentication.
func (s *Service) Login(ctx context.Context, username, password string, origin Origin) (*LoginResult, error) {
	user, lookupErr := s.users.GetByUsername(ctx, username)

	// Determine which hash to verify against (real or dummy for timing attack prevention)
	var targetHash string
	var userExists bool

	if lookupErr != nil {
		if errors.Is(lookupErr, ErrNotFound) {
			// Use dummy hash - still perform verification to maintain constant time
			targetHash = dummyPasswordHash
			userExists = false
		} else {
			recordLogin(OutcomeError)
			return nil, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by username").
				Wrap(lookupErr)
		}
	} else {
		targetHash = user.PasswordHash
		userExists = true
	}

	valid, verifyErr := s.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		// For dummy hash verification errors, just treat as invalid
		if !userExists {
			recordLogin(OutcomeInvalid)
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		recordLogin(OutcomeError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			Wrap(verifyErr)
	}

	// If user doesn't exist OR password invalid, return same error
	if !userExists || !valid {
		recordLogin(OutcomeInvalid)
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	// The credential has matched; from here on the login is committed and
	// must not be abandoned half way through by a caller timeout.
	ctx = context.WithoutCancel(ctx)

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeCredential(ctx, user, password)
	}

	now := time.Now().UTC()
	record, err := NewSessionRecord(user, now, origin)
	if err != nil {
		recordLogin(OutcomeError)
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session record").
			Wrap(err)
	}

	if err := s.sessions.Create(ctx, record); err != nil {
		// No successful authentication without its audit row.
		recordLogin(OutcomeAuditFailed)
		return nil, oops.Code("AUTH_AUDIT_WRITE_FAILED").
			With("operation", "record sign-in").
			With("username", user.Username).
			Wrap(errors.Join(ErrAuditWriteFailed, err))
	}

	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		// Best effort; the audit row is the source of truth.
		s.logger.Warn("could not update last_login",
			"username", user.Username,
			"error", err)
	} else {
		t := now
		user.LastLogin = &t
	}

	state := StateAuthenticated
	if !user.PasswordChanged {
		state = StateForcedChange
	}
	recordLogin(string(state))

	return &LoginResult{User: user, Session: record, State: state}, nil
}

// upgradeCredential re-derives a legacy hash as argon2id. Failures are
// logged and swallowed: the login already succeeded, and the next login
// is another opportunity to migrate this record. The update is guarded on
// the stored scheme still being legacy, so concurrent logins leave
// exactly one consistent hash.
func (s *Service) upgradeCredential(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		CredentialUpgrades.WithLabelValues("failed").Inc()
		s.logger.Warn("legacy credential upgrade failed",
			"username", user.Username,
			"error", err)
		return
	}

	err = s.users.UpdateCredential(ctx, user.ID, CredentialUpdate{
		Hash:         newHash,
		Scheme:       SchemeArgon2id,
		OnlyIfScheme: SchemeLegacySHA256,
	})
	if err != nil {
		CredentialUpgrades.WithLabelValues("failed").Inc()
		s.logger.Warn("legacy credential upgrade failed, will retry on a later login",
			"username", user.Username,
			"error", err)
		return
	}

	user.PasswordHash = newHash
	user.Scheme = SchemeArgon2id
	CredentialUpgrades.WithLabelValues("upgraded").Inc()
}

// ChangePassword verifies the current password and atomically installs a
// new argon2id hash with password_changed set. This is the only path that
// ever sets password_changed, and it shares the UpdateCredential
// primitive with the silent login upgrade.
func (s *Service) ChangePassword(ctx context.Context, userID ulid.ULID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			PasswordChanges.WithLabelValues("invalid").Inc()
			return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "get user by id").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(currentPassword, user.PasswordHash)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "verify current password").
			Wrap(err)
	}
	if !valid {
		PasswordChanges.WithLabelValues("invalid").Inc()
		return oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrInvalidCredentials)
	}

	if len(newPassword) < MinPasswordLength {
		PasswordChanges.WithLabelValues("weak").Inc()
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Wrap(ErrWeakPassword)
	}

	// Same commitment point as Login: past verification, a caller timeout
	// must not strand a half-applied change.
	ctx = context.WithoutCancel(ctx)

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "derive new hash").
			Wrap(err)
	}

	err = s.users.UpdateCredential(ctx, user.ID, CredentialUpdate{
		Hash:        newHash,
		Scheme:      SchemeArgon2id,
		MarkChanged: true,
	})
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").
			With("operation", "update credential").
			Wrap(err)
	}

	PasswordChanges.WithLabelValues("changed").Inc()
	return nil
}

// Logout fills in the logout timestamp on a sign-in record, exactly once.
func (s *Service) Logout(ctx context.Context, sessionID ulid.ULID) error {
	err := s.sessions.Close(ctx, sessionID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("SESSION_NOT_FOUND").
				With("session_id", sessionID.String()).
				Wrap(err)
		}
		if errors.Is(err, ErrAlreadyClosed) {
			return oops.Code("SESSION_ALREADY_CLOSED").
				With("session_id", sessionID.String()).
				Wrap(err)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "close session").
			With("session_id", sessionID.String()).
			Wrap(err)
	}
	return nil
}

// SigninHistory returns sign-in records matching the filter, newest
// first.
func (s *Service) SigninHistory(ctx context.Context, filter SessionFilter) ([]*SessionRecord, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}
	records, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, oops.Code("AUTH_HISTORY_FAILED").
			With("operation", "list sign-in records").
			Wrap(err)
	}
	return records, nil
}

// Register creates a new user with an argon2id hash of the initial
// password. The account starts with password_changed false, so the first
// login yields a provisional session until the password is changed.
func (s *Service) Register(ctx context.Context, username, password string, role Role) (*User, error) {
	if len(password) < MinPasswordLength {
		return nil, oops.Code("AUTH_WEAK_PASSWORD").
			With("min", MinPasswordLength).
			Wrap(ErrWeakPassword)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "derive hash").
			Wrap(err)
	}

	user, err := NewUser(username, hash, SchemeArgon2id, role, username)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, oops.Code("AUTH_DUPLICATE_USER").
				With("username", username).
				Wrap(err)
		}
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// Remove deletes a user account. Self-deletion and deletion of admin
// accounts are refused. Annotation records keep the deleted user's
// external ID and are unaffected.
func (s *Service) Remove(ctx context.Context, username, actingUsername string) error {
	if username == actingUsername {
		return oops.Code("AUTH_SELF_DELETE").Errorf("cannot delete your own account")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_USER_NOT_FOUND").
				With("username", username).
				Wrap(err)
		}
		return oops.Code("AUTH_REMOVE_FAILED").
			With("operation", "get user by username").
			Wrap(err)
	}

	if user.Role == RoleAdmin {
		return oops.Code("AUTH_ADMIN_DELETE").Errorf("cannot delete admin accounts")
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		return oops.Code("AUTH_REMOVE_FAILED").
			With("operation", "delete user").
			With("username", username).
			Wrap(err)
	}
	return nil
}

// Users returns all accounts, ordered by username.
func (s *Service) Users(ctx context.Context) ([]*User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_LIST_FAILED").
			With("operation", "list users").
			Wrap(err)
	}
	return users, nil
}
