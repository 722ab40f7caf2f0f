// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/annolab/annolab/internal/auth"
	authpg "github.com/annolab/annolab/internal/auth/postgres"
	"github.com/annolab/annolab/internal/config"
	"github.com/annolab/annolab/internal/store"
)

// loadConfig resolves configuration from the --config flag, command
// flags, and the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(configFile, cmd.Flags())
}

// buildService connects to the database and wires up the auth service.
// The caller owns the returned pool and must Close it.
func buildService(ctx context.Context, cfg *config.Config) (*auth.Service, *pgxpool.Pool, error) {
	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	service, err := auth.NewAuthService(
		authpg.NewUserRepository(pool),
		authpg.NewSessionRepository(pool),
		auth.NewArgon2idHasher(),
	)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}

	return service, pool, nil
}
