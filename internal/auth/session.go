// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultHistoryLimit bounds sign-in history queries that do not specify
// their own limit.
const DefaultHistoryLimit = 50

// Origin carries optional metadata about where a login came from.
type Origin struct {
	IPAddress string
	UserAgent string
}

// SessionRecord is an append-only audit entry for a successful sign-in.
// After creation the only permitted mutation is the one-time fill-in of
// LogoutAt.
type SessionRecord struct {
	ID        ulid.ULID
	UserID    ulid.ULID
	Username  string
	LoginAt   time.Time
	LogoutAt  *time.Time
	IPAddress string
	UserAgent string
}

// NewSessionRecord creates a validated SessionRecord for a user signing
// in at the given time.
func NewSessionRecord(user *User, at time.Time, origin Origin) (*SessionRecord, error) {
	if user == nil {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user cannot be nil")
	}
	if at.IsZero() {
		return nil, oops.Code("SESSION_INVALID_TIME").Errorf("login time cannot be zero")
	}
	if at.Before(user.CreatedAt) {
		return nil, oops.Code("SESSION_INVALID_TIME").
			With("login_at", at).
			With("created_at", user.CreatedAt).
			Errorf("login time precedes account creation")
	}

	return &SessionRecord{
		ID:        ulid.Make(),
		UserID:    user.ID,
		Username:  user.Username,
		LoginAt:   at,
		IPAddress: origin.IPAddress,
		UserAgent: origin.UserAgent,
	}, nil
}

// Closed reports whether the logout timestamp has been set.
func (r *SessionRecord) Closed() bool {
	return r.LogoutAt != nil
}

// SessionFilter narrows a sign-in history query. Zero values mean
// "no constraint"; a Limit <= 0 falls back to DefaultHistoryLimit.
type SessionFilter struct {
	Username string
	Since    time.Time
	Limit    int
}

// SessionRepository manages the sign-in audit log. Rows are appended and
// never edited, except for the single logout-timestamp fill-in performed
// by Close.
type SessionRepository interface {
	// Create appends a new sign-in record.
	Create(ctx context.Context, record *SessionRecord) error

	// Close sets the logout timestamp, exactly once. Returns
	// ErrAlreadyClosed if it is already set and ErrNotFound if the
	// session does not exist.
	Close(ctx context.Context, id ulid.ULID, at time.Time) error

	// List returns records matching the filter, ordered by login time
	// descending.
	List(ctx context.Context, filter SessionFilter) ([]*SessionRecord, error)
}
