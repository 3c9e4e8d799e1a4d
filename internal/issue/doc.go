// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing errors for the buildhook CLI.
//
// ActionableError carries what was attempted, on what, and how to fix it.
// The issue catalog holds longer Markdown guidance for the failures users
// hit most, rendered with glamour when the CLI reports them.
package issue
