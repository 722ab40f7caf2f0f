// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

// Package store provides database connection and schema plumbing shared
// by the repositories.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry parameters. Postgres is commonly still starting when
// the service comes up under docker-compose.
const (
	connectBaseDelay   = 500 * time.Millisecond
	connectMaxAttempts = 5
)

// Connect opens a pgx connection pool and verifies it with a ping,
// retrying with exponential backoff while the database comes up.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "create connection pool").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(connectMaxAttempts, retry.NewExponential(connectBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_UNAVAILABLE").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
