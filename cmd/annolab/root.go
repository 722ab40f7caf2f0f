// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the AnnoLab CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annolab",
		Short: "AnnoLab - annotation platform authentication service",
		Long: `AnnoLab manages annotator accounts: password authentication with
silent legacy-hash migration, forced first-login password changes,
and an append-only sign-in audit log.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewUserAddCmd())
	cmd.AddCommand(NewUserDelCmd())
	cmd.AddCommand(NewUsersCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}
