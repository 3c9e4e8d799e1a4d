// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package pathresolve

import "os"

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return info.Mode().Perm()&0o111 != 0
}
