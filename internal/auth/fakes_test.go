// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/annolab/annolab/internal/auth"
)

// fakeUserRepo is an in-memory UserRepository. It honors the OnlyIfScheme
// guard the same way the postgres implementation does, so concurrency
// behavior around the silent upgrade can be exercised without a database.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[ulid.ULID]*auth.User

	createErr error
	getErr    error
	updateErr error
	touchErr  error

	credentialUpdates []auth.CredentialUpdate
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[ulid.ULID]*auth.User)}
}

func (f *fakeUserRepo) add(user *auth.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := *user
	f.users[user.ID] = &u
}

func (f *fakeUserRepo) get(id ulid.ULID) *auth.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (f *fakeUserRepo) Create(_ context.Context, user *auth.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == user.Username {
			return auth.ErrDuplicateUser
		}
	}
	u := *user
	f.users[user.ID] = &u
	return nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*auth.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.ErrNotFound
}

func (f *fakeUserRepo) UpdateCredential(_ context.Context, id ulid.ULID, update auth.CredentialUpdate) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	if update.OnlyIfScheme != "" && u.Scheme != update.OnlyIfScheme {
		// Guarded update whose precondition no longer holds: no-op.
		return nil
	}
	u.PasswordHash = update.Hash
	u.Scheme = update.Scheme
	if update.MarkChanged {
		u.PasswordChanged = true
	}
	f.credentialUpdates = append(f.credentialUpdates, update)
	return nil
}

func (f *fakeUserRepo) TouchLastLogin(_ context.Context, id ulid.ULID, at time.Time) error {
	if f.touchErr != nil {
		return f.touchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	t := at
	u.LastLogin = &t
	return nil
}

func (f *fakeUserRepo) List(_ context.Context) ([]*auth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*auth.User, 0, len(f.users))
	for _, u := range f.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.users)), nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id ulid.ULID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return auth.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// fakeSessionRepo is an in-memory append-only SessionRepository.
type fakeSessionRepo struct {
	mu      sync.Mutex
	records []*auth.SessionRecord

	createErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{}
}

func (f *fakeSessionRepo) Create(_ context.Context, record *auth.SessionRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *record
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeSessionRepo) Close(_ context.Context, id ulid.ULID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == id {
			if r.LogoutAt != nil {
				return auth.ErrAlreadyClosed
			}
			t := at
			r.LogoutAt = &t
			return nil
		}
	}
	return auth.ErrNotFound
}

func (f *fakeSessionRepo) List(_ context.Context, filter auth.SessionFilter) ([]*auth.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*auth.SessionRecord, 0, len(f.records))
	for _, r := range f.records {
		if filter.Username != "" && r.Username != filter.Username {
			continue
		}
		if !filter.Since.IsZero() && r.LoginAt.Before(filter.Since) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LoginAt.After(out[j].LoginAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

var (
	_ auth.UserRepository    = (*fakeUserRepo)(nil)
	_ auth.SessionRepository = (*fakeSessionRepo)(nil)
)
