// SPDX-License-Identifier: MPL-2.0

// Package collector serves rewrite settings to exec hooks and collects what
// they did.
//
// A Server listens on loopback for the duration of one build. Every request
// except /health and /metrics carries the bearer token the server generated
// at construction; the token and URL reach hooks through the environment
// (see Server.Env). Hooks use a Client to fetch the current Settings and to
// report each intercepted invocation. Reports feed the compilation database.
//
// The server's rules can be swapped while it runs with SetRules. Hooks that
// start after the swap see the new rules.
package collector
