// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/annolab/annolab/internal/auth"
)

const sessionColumns = `id, user_id, username, login_at, logout_at, ip_address, user_agent`

// SessionRepository implements auth.SessionRepository using PostgreSQL.
// user_sessions is insert-only; the lone UPDATE path is the one-time
// logout-timestamp fill-in in Close.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create appends a new sign-in record.
func (r *SessionRepository) Create(ctx context.Context, record *auth.SessionRecord) error {
	// Empty origin fields are stored as NULL.
	var ipArg any
	if record.IPAddress != "" {
		ipArg = record.IPAddress
	}
	var agentArg any
	if record.UserAgent != "" {
		agentArg = record.UserAgent
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO user_sessions (id, user_id, username, login_at, logout_at, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		record.ID.String(),
		record.UserID.String(),
		record.Username,
		record.LoginAt,
		record.LogoutAt,
		ipArg,
		agentArg,
	)
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert user_session").
			With("user_id", record.UserID.String()).
			Wrap(err)
	}
	return nil
}

// Close sets the logout timestamp, exactly once. The UPDATE is guarded on
// logout_at still being NULL, so a second close cannot rewrite history.
func (r *SessionRepository) Close(ctx context.Context, id ulid.ULID, at time.Time) error {
	result, err := r.db.Exec(ctx, `
		UPDATE user_sessions SET logout_at = $2
		WHERE id = $1 AND logout_at IS NULL
	`, id.String(), at)
	if err != nil {
		return oops.Code("SESSION_CLOSE_FAILED").
			With("operation", "update logout_at").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		// Distinguish a missing session from one already closed.
		var logoutAt *time.Time
		err := r.db.QueryRow(ctx, `
			SELECT logout_at FROM user_sessions WHERE id = $1
		`, id.String()).Scan(&logoutAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return oops.Code("SESSION_NOT_FOUND").
				With("id", id.String()).
				Wrap(auth.ErrNotFound)
		}
		if err != nil {
			return oops.Code("SESSION_CLOSE_FAILED").
				With("operation", "check logout_at").
				With("id", id.String()).
				Wrap(err)
		}
		return oops.Code("SESSION_ALREADY_CLOSED").
			With("id", id.String()).
			Wrap(auth.ErrAlreadyClosed)
	}
	return nil
}

// List returns sign-in records matching the filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter auth.SessionFilter) ([]*auth.SessionRecord, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = auth.DefaultHistoryLimit
	}

	query := `SELECT ` + sessionColumns + ` FROM user_sessions`
	var conds []string
	var args []any

	if filter.Username != "" {
		args = append(args, filter.Username)
		conds = append(conds, fmt.Sprintf("username = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		conds = append(conds, fmt.Sprintf("login_at >= $%d", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY login_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, oops.Code("SESSION_LIST_FAILED").
			With("operation", "list user_sessions").
			Wrap(err)
	}
	defer rows.Close()

	var records []*auth.SessionRecord
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, oops.Code("SESSION_SCAN_FAILED").
				With("operation", "scan user_session row").
				Wrap(err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, oops.Code("SESSION_ROWS_ERROR").
			With("operation", "iterate user_session rows").
			Wrap(err)
	}

	return records, nil
}

// scanRecord scans a row into a SessionRecord.
func (r *SessionRepository) scanRecord(row pgx.Row) (*auth.SessionRecord, error) {
	var (
		idStr     string
		userIDStr string
		username  string
		loginAt   time.Time
		logoutAt  *time.Time
		ipAddress *string
		userAgent *string
	)

	err := row.Scan(&idStr, &userIDStr, &username, &loginAt, &logoutAt, &ipAddress, &userAgent)
	if err != nil {
		return nil, oops.Code("SESSION_SCAN_FAILED").
			With("operation", "scan user_session").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").
			With("operation", "parse session id").
			With("id", idStr).
			Wrap(err)
	}

	userID, err := ulid.Parse(userIDStr)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_USER_ID").
			With("operation", "parse user id").
			With("user_id", userIDStr).
			Wrap(err)
	}

	record := &auth.SessionRecord{
		ID:       id,
		UserID:   userID,
		Username: username,
		LoginAt:  loginAt,
		LogoutAt: logoutAt,
	}
	if ipAddress != nil {
		record.IPAddress = *ipAddress
	}
	if userAgent != nil {
		record.UserAgent = *userAgent
	}
	return record, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
