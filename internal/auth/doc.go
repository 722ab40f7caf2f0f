// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AnnoLab Contributors

// Package auth provides the authentication and credential-migration core
// for AnnoLab.
//
// # Domain Types
//
// Domain types (User, SessionRecord) should be created using their
// respective constructors:
//   - NewUser - creates a User with validated username, role, and hash
//   - NewSessionRecord - creates a SessionRecord tied to a User
//
// Direct struct initialization bypasses validation and may create invalid
// state. Repository implementations receive pre-validated types from these
// constructors.
//
// # Services
//
// Service coordinates the login flow: credential lookup, verification
// against the stored hash scheme, silent upgrade of legacy SHA-256 hashes
// to argon2id, mandatory sign-in auditing, and the forced first-login
// password change. See Service.Login and Service.ChangePassword.
//
// # Hash Schemes
//
// Two schemes coexist: legacy unsalted SHA-256 hex digests carried over
// from the pre-migration user store, and argon2id PHC strings used for
// every newly derived credential. The scheme is identified from the stored
// hash format itself, so records written before the scheme column existed
// remain verifiable.
package auth
