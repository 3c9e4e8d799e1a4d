// SPDX-License-Identifier: MPL-2.0

// Package compdb builds a JSON compilation database (compile_commands.json)
// from the invocations a collector received.
//
// Each invocation yields one entry per source file on its command line. Link
// steps and other invocations without recognized sources yield none.
package compdb
