// SPDX-License-Identifier: MPL-2.0

package hook

import "strings"

// LookupEnv returns the last value of key in environ, as getenv(3) would
// see it after later entries override earlier ones.
func LookupEnv(environ []string, key string) (string, bool) {
	prefix := key + "="
	for i := len(environ) - 1; i >= 0; i-- {
		if v, ok := strings.CutPrefix(environ[i], prefix); ok {
			return v, true
		}
	}
	return "", false
}

// setEnv returns environ with every entry for key replaced by key=value.
func setEnv(environ []string, key, value string) []string {
	out := unsetEnv(environ, key)
	return append(out, key+"="+value)
}

// unsetEnv returns environ without any entry for key.
func unsetEnv(environ []string, key string) []string {
	prefix := key + "="
	out := make([]string, 0, len(environ)+1)
	for _, kv := range environ {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return out
}
