// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/buildhook/buildhook/internal/config"
	"github.com/buildhook/buildhook/internal/hook"
	"github.com/buildhook/buildhook/internal/testutil"
)

// TestMain lets the test binary stand in for buildhook behind compiler
// shims, so run tests intercept real builds.
func TestMain(m *testing.M) {
	if hook.IsShimInvocation(os.Args[0], os.Environ()) {
		os.Exit(int(runHook(context.Background(), os.Args, os.Stderr)))
	}
	os.Exit(m.Run())
}

// isolateConfig points configuration lookup at an empty temp directory,
// changes into a fresh working directory and clears the variables the
// loader reads. It returns the working directory. Tests using it must not
// run in parallel.
func isolateConfig(t *testing.T) string {
	t.Helper()

	for _, key := range []string{
		"CC", "CXX",
		"BUILDHOOK_MATCH_CC", "BUILDHOOK_MATCH_CXX", "BUILDHOOK_REPLACE_CC", "BUILDHOOK_REPLACE_CXX",
		"BUILDHOOK_ADD_ARGUMENTS", "BUILDHOOK_REMOVE_ARGUMENTS", "BUILDHOOK_FUZZER", "BUILDHOOK_SANITIZER",
		"BUILDHOOK_UNKNOWN_FLAG_POLICY", "BUILDHOOK_RULES_FILE", "BUILDHOOK_COMPILATION_DB",
		"BUILDHOOK_COMPILATION_DB_PATH", "BUILDHOOK_COLLECTOR_LISTEN_PORT",
		"BUILDHOOK_COLLECTOR_SETTINGS_TIMEOUT", "BUILDHOOK_LOG_LEVEL",
	} {
		testutil.MustUnsetenv(t, key)
	}

	dir := t.TempDir()
	config.SetConfigDirOverride(filepath.Join(dir, ".config"))
	t.Cleanup(config.Reset)
	testutil.MustChdir(t, dir)
	return dir
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

// runCLI executes the command tree with args and captures its output.
func runCLI(t *testing.T, deps Dependencies, args ...string) cliResult {
	t.Helper()

	var stdout, stderr bytes.Buffer
	deps.Stdout = &stdout
	deps.Stderr = &stderr
	app, err := NewApp(deps)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}

	rootCmd, _ := newRootCommand(app)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SilenceErrors = true
	err = rootCmd.ExecuteContext(t.Context())
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), err: err}
}
