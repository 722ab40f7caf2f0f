// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the bootstrap admin account",
		Long: `Creates the initial admin account if the user store is empty.
This command is idempotent - it does nothing when any account already exists.
The admin starts with a forced password change, so the configured bootstrap
password is only usable once.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, cfg *seedConfig) error {
	conf, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if conf.Bootstrap.AdminPassword == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("bootstrap admin password is required (config file or ANNOLAB_ADMIN_PASSWORD environment variable)")
	}

	// Add timeout to prevent indefinite hangs
	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	service, pool, err := buildService(ctx, conf)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := service.EnsureAdmin(ctx, conf.Bootstrap.AdminUsername, conf.Bootstrap.AdminPassword)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "ensure admin account").Wrap(err)
	}

	if user == nil {
		cmd.Println("User store is not empty, skipping seed")
		return nil
	}

	cmd.Printf("Created admin account %q (password change required on first login)\n", user.Username)
	return nil
}
