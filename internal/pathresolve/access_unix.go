// SPDX-License-Identifier: MPL-2.0

//go:build unix

package pathresolve

import (
	"os"

	"golang.org/x/sys/unix"
)

// isExecutable reports whether path is a regular file the calling process
// may execute, using the same access(2) check the kernel applies on exec.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
