// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords. The two cases are never distinguished outward.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrWeakPassword is returned when a new password violates the minimum
// length policy.
var ErrWeakPassword = errors.New("password too short")

// ErrDuplicateUser is returned when creating a user whose username is
// already taken.
var ErrDuplicateUser = errors.New("username already exists")

// ErrAuditWriteFailed is returned when the sign-in audit record cannot be
// persisted. The login attempt fails as a whole; no authentication
// succeeds without its audit row.
var ErrAuditWriteFailed = errors.New("sign-in audit write failed")

// ErrAlreadyClosed is returned when closing a session whose logout
// timestamp is already set.
var ErrAlreadyClosed = errors.New("session already closed")
