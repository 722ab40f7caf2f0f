// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

package auth

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome constants for login metrics.
const (
	OutcomeAuthenticated = "authenticated"
	OutcomeForcedChange  = "forced_change"
	OutcomeInvalid       = "invalid_credentials"
	OutcomeAuditFailed   = "audit_failed"
	OutcomeError         = "error"
)

// LoginAttempts is the counter for login attempts by outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "annolab_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	},
	[]string{"outcome"},
)

// CredentialUpgrades is the counter for silent legacy-hash upgrades.
// Use RegisterMetrics to register this with a Prometheus registry.
var CredentialUpgrades = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "annolab_credential_upgrades_total",
		Help: "Total number of legacy credential upgrades by result",
	},
	[]string{"result"},
)

// PasswordChanges is the counter for password-change operations.
// Use RegisterMetrics to register this with a Prometheus registry.
var PasswordChanges = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "annolab_password_changes_total",
		Help: "Total number of password changes by result",
	},
	[]string{"result"},
)

// RegisterMetrics registers auth package metrics with the given Prometheus
// registry. This must be called at startup to make metrics available on
// /metrics. Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(CredentialUpgrades)
	reg.MustRegister(PasswordChanges)
}

func recordLogin(outcome string) {
	LoginAttempts.WithLabelValues(outcome).Inc()
}
