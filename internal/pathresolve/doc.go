// SPDX-License-Identifier: MPL-2.0

// Package pathresolve turns executable names into canonical absolute paths
// using POSIX PATH-search semantics.
//
// Failures are reported as a false second return value, never as errors:
// callers decide whether an unresolved name is fatal.
package pathresolve
