// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that fail fast on setup
// errors: environment and directory management, fake compiler executables
// and server shutdown.
package testutil
