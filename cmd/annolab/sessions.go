// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package main

import (
	"context"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/annolab/annolab/internal/auth"
)

// NewSessionsCmd creates the sessions subcommand.
func NewSessionsCmd() *cobra.Command {
	var (
		username string
		since    string
		limit    int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Show sign-in history",
		Long:  `Show the sign-in audit log, newest first.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSessions(cmd, username, since, limit, timeout)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "only show sign-ins for this user")
	cmd.Flags().StringVar(&since, "since", "", "only show sign-ins at or after this RFC 3339 timestamp")
	cmd.Flags().IntVar(&limit, "limit", auth.DefaultHistoryLimit, "maximum number of records")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultUserCmdTimeout, "timeout for database operations")

	return cmd
}

func runSessions(cmd *cobra.Command, username, since string, limit int, timeout time.Duration) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filter := auth.SessionFilter{Username: username, Limit: limit}
	if since != "" {
		t, parseErr := time.Parse(time.RFC3339, since)
		if parseErr != nil {
			return oops.Code("INVALID_ARGUMENT").
				With("since", since).
				Errorf("--since must be an RFC 3339 timestamp")
		}
		filter.Since = t
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, pool, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	records, err := service.SigninHistory(ctx, filter)
	if err != nil {
		return err
	}

	for _, rec := range records {
		logout := "open"
		if rec.LogoutAt != nil {
			logout = rec.LogoutAt.Format(time.RFC3339)
		}
		origin := rec.IPAddress
		if origin == "" {
			origin = "-"
		}
		cmd.Printf("%-30s in: %s  out: %-25s from: %s\n",
			rec.Username, rec.LoginAt.Format(time.RFC3339), logout, origin)
	}
	cmd.Printf("%d record(s)\n", len(records))
	return nil
}
