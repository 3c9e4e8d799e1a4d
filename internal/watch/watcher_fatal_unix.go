// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isFatalFsnotifyError reports inotify resource exhaustion. The watch limit
// (ENOSPC) and the descriptor limits (EMFILE, ENFILE) leave the watcher
// unable to see further changes.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, unix.ENOSPC) ||
		errors.Is(err, unix.EMFILE) ||
		errors.Is(err, unix.ENFILE)
}
