// SPDX-License-Identifier: MPL-2.0

// Package config loads buildhook settings and turns them into the rules an
// exec hook applies.
//
// Settings come from, in increasing precedence: built-in defaults, a
// config.cue file (validated against the embedded #Config schema), BUILDHOOK_*
// environment variables (plus CC and CXX for the replacement compilers) and
// command-line flags. A fuzzer preset or a toolchain rules file then decides
// the final rule list.
package config
