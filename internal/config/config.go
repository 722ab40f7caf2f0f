// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

// Package config loads service configuration from a YAML file, command
// line flags, and the environment.
package config

import (
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Defaults.
const (
	DefaultListenAddr  = ":8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"
	DefaultAdminUser   = "admin"
)

// Bootstrap holds the initial admin credentials used only when the user
// store is empty. The account is created with a forced password change,
// so the configured password never outlives the first login.
type Bootstrap struct {
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`
}

// Config is the full service configuration.
type Config struct {
	DatabaseURL string    `koanf:"database_url"`
	ListenAddr  string    `koanf:"listen_addr"`
	MetricsAddr string    `koanf:"metrics_addr"`
	LogFormat   string    `koanf:"log_format"`
	Bootstrap   Bootstrap `koanf:"bootstrap"`
}

// Load reads configuration from the given YAML file (optional, may be
// empty), overlays values from flags, and falls back to the DATABASE_URL
// environment variable. DatabaseURL is required.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_READ_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = DefaultMetricsAddr
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.Bootstrap.AdminUsername == "" {
		cfg.Bootstrap.AdminUsername = DefaultAdminUser
	}
	if cfg.Bootstrap.AdminPassword == "" {
		cfg.Bootstrap.AdminPassword = os.Getenv("ANNOLAB_ADMIN_PASSWORD")
	}

	if cfg.DatabaseURL == "" {
		return nil, oops.Code("CONFIG_INVALID").
			Errorf("database_url is required (config file or DATABASE_URL environment variable)")
	}

	return cfg, nil
}
