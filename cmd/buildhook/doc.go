// SPDX-License-Identifier: MPL-2.0

// Package cmd implements the buildhook command line.
//
// The same binary is both the CLI and the compiler hook: started under a
// compiler's name through a shim, Execute runs the hook instead of the
// command tree.
package cmd
