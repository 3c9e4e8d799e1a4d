// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"runtime"
	"testing"
)

// SetHomeDir points the platform's home variable at dir for the rest of the
// test, and also clears XDG_CONFIG_HOME so os.UserConfigDir derives from it.
func SetHomeDir(t testing.TB, dir string) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		MustSetenv(t, "USERPROFILE", dir)
	default:
		MustSetenv(t, "HOME", dir)
		MustUnsetenv(t, "XDG_CONFIG_HOME")
	}
}
