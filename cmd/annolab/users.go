// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/annolab/annolab/internal/auth"
)

// Default timeout for user management commands.
const defaultUserCmdTimeout = 30 * time.Second

// NewUserAddCmd creates the useradd subcommand.
func NewUserAddCmd() *cobra.Command {
	var (
		role    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "useradd <username> <password>",
		Short: "Create a user account",
		Long: `Create a user account with the given initial password. The account
starts with a forced password change: the first login only permits
changing the password.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserAdd(cmd, args[0], args[1], role, timeout)
		},
	}

	cmd.Flags().StringVar(&role, "role", string(auth.RoleTester), "account role (admin or tester)")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultUserCmdTimeout, "timeout for database operations")

	return cmd
}

func runUserAdd(cmd *cobra.Command, username, password, role string, timeout time.Duration) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	user, err := service.Register(ctx, username, password, auth.Role(role))
	if err != nil {
		return err
	}

	cmd.Printf("Created account %q (role %s, password change required on first login)\n", user.Username, user.Role)
	return nil
}

// NewUserDelCmd creates the userdel subcommand.
func NewUserDelCmd() *cobra.Command {
	var (
		actingUser string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "userdel <username>",
		Short: "Delete a user account",
		Long: `Delete a user account. Admin accounts cannot be deleted, and the
acting user cannot delete themselves. Annotation records referencing
the deleted user's external ID are left intact.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUserDel(cmd, args[0], actingUser, timeout)
		},
	}

	cmd.Flags().StringVar(&actingUser, "acting-user", "", "username performing the deletion (for the self-delete guard)")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultUserCmdTimeout, "timeout for database operations")

	return cmd
}

func runUserDel(cmd *cobra.Command, username, actingUser string, timeout time.Duration) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := service.Remove(ctx, username, actingUser); err != nil {
		return err
	}

	cmd.Printf("Deleted account %q\n", username)
	return nil
}

// NewUsersCmd creates the users subcommand.
func NewUsersCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List user accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUsers(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", defaultUserCmdTimeout, "timeout for database operations")

	return cmd
}

func runUsers(cmd *cobra.Command, timeout time.Duration) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	users, err := service.Users(ctx)
	if err != nil {
		return err
	}

	for _, u := range users {
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(time.RFC3339)
		}
		scheme := string(u.Scheme)
		if !u.PasswordChanged {
			scheme += ", change pending"
		}
		cmd.Printf("%-30s %-8s %-30s last login: %s\n", u.Username, u.Role, "("+scheme+")", lastLogin)
	}
	cmd.Printf("%d account(s)\n", len(users))
	return nil
}
