// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestMustSetenv_Restores(t *testing.T) {
	const key = "BUILDHOOK_TESTUTIL_PROBE"

	t.Run("set", func(t *testing.T) {
		MustSetenv(t, key, "inner")
		if got := os.Getenv(key); got != "inner" {
			t.Fatalf("Getenv() = %q, want inner", got)
		}
	})

	if _, ok := os.LookupEnv(key); ok {
		t.Errorf("%s still set after subtest cleanup", key)
	}
}

func TestMustWriteExecutable(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no /bin/sh available")
	}

	dir := t.TempDir()
	path := MustWriteExecutable(t, dir, "fakecc")
	if path != filepath.Join(dir, "fakecc") {
		t.Errorf("path = %q", path)
	}

	out, err := exec.Command(path, "-c", "a.c").Output()
	if err != nil {
		t.Fatalf("running fake executable: %v", err)
	}
	if got := strings.Fields(string(out)); strings.Join(got, " ") != "fakecc -c a.c" {
		t.Errorf("output = %q", got)
	}
}
