// SPDX-License-Identifier: MPL-2.0

// Package hook runs in place of a compiler during an intercepted build.
//
// buildhook run puts a shim directory first on the build's PATH. Every entry
// in it is a symlink to the buildhook binary named after a compiler, so a
// build that runs gcc runs buildhook instead. The hook fetches the
// collector's settings, rewrites the invocation, reports it and replaces its
// own process image with the compiler that should run.
//
// The hook sits on the path of every compile. It logs nothing above warn on
// success and falls back to the unmodified command whenever the collector
// cannot be reached.
package hook
