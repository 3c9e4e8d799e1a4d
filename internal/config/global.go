// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform config directory. os.UserConfigDir
// does not follow HOME on every platform, so tests set this instead.
var configDirOverride string

// Reset clears test overrides.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride makes ConfigDir return dir.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
