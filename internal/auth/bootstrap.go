// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// EnsureAdmin creates the initial admin account when the store holds no
// users at all. The account is created with password_changed false, so
// the configured bootstrap password only ever opens a provisional session
// until it is replaced.
//
// Idempotent: returns (nil, nil) when users already exist, and treats a
// concurrent bootstrap racing to the same username as already done.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (*User, error) {
	n, err := s.users.Count(ctx)
	if err != nil {
		return nil, oops.Code("AUTH_BOOTSTRAP_FAILED").
			With("operation", "count users").
			Wrap(err)
	}
	if n > 0 {
		return nil, nil
	}

	user, err := s.Register(ctx, username, password, RoleAdmin)
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			// Another process seeded concurrently.
			return nil, nil
		}
		return nil, err
	}

	s.logger.Info("created bootstrap admin account",
		"username", username)
	return user, nil
}
