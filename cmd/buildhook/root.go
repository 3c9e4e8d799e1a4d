// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/buildhook/buildhook/internal/hook"
	"github.com/buildhook/buildhook/internal/issue"
	"github.com/buildhook/buildhook/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// issueStyle is the glamour style for catalog issues. "auto" falls back to
// plain text when stdout is not a terminal.
const issueStyle = "auto"

// newRootCommand builds the command tree around app.
func newRootCommand(app *App) (*cobra.Command, *rootFlagValues) {
	rootFlags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   "buildhook",
		Short: "Rewrite the compiler invocations of any build",
		Long: TitleStyle.Render("buildhook") + SubtitleStyle.Render(" - Rewrite the compiler invocations of any build") + `

buildhook runs a build with its compilers intercepted. Each compiler call
is matched against declarative rules that can substitute the compiler,
inject flags or strip them, without touching the build's own scripts.

` + SubtitleStyle.Render("Examples:") + `
  buildhook run --fuzzer libfuzzer -- make -j8
  buildhook run --rules toolchain.yaml --compilation-db -- ./build.sh
  buildhook rewrite "gcc -O2 -c foo.c"
  buildhook rules show
  buildhook config show`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/buildhook/config.cue)")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	pf.StringVar(&rootFlags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newRunCommand(app, rootFlags),
		newRewriteCommand(app, rootFlags),
		newClassifyCommand(app),
		newRulesCommand(app, rootFlags),
		newFlagsCommand(app),
		newConfigCommand(app, rootFlags),
		newExecHookCommand(app),
	)
	return rootCmd, rootFlags
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs buildhook. Invoked through a compiler shim it acts as the
// exec hook and never reaches the command tree.
func Execute() {
	ctx := context.Background()

	if hook.IsShimInvocation(os.Args[0], os.Environ()) {
		os.Exit(int(runHook(ctx, os.Args, os.Stderr)))
	}

	app, err := NewApp(Dependencies{})
	if err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("Error: ")+err.Error())
		os.Exit(int(types.ExitFailure))
	}
	rootCmd, rootFlags := newRootCommand(app)

	if err := fang.Execute(
		ctx,
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			handleError(w, styles, err, rootFlags.verbose)
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(int(exitErr.Code))
		}
		os.Exit(int(types.ExitFailure))
	}
}

// handleError prints err unless it is a silent ExitError. Actionable errors
// are printed with their suggestions and linked catalog issue.
func handleError(w io.Writer, styles fang.Styles, err error, verbose bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fang.DefaultErrorHandler(w, styles, err)
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))
	renderIssue(w, err)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their Format method; verbose mode shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// renderIssue prints the catalog issue linked from err, if any.
func renderIssue(w io.Writer, err error) {
	iss, ok := issue.IssueOf(err)
	if !ok {
		return
	}
	rendered, renderErr := iss.Render(issueStyle)
	if renderErr != nil {
		return
	}
	fmt.Fprint(w, rendered)
}

// runHook runs the exec hook on argv and returns the exit status to use
// when it could not exec a compiler.
func runHook(ctx context.Context, argv []string, stderr io.Writer) types.ExitCode {
	h, err := hook.New()
	if err == nil {
		err = h.Run(ctx, argv)
	}
	if err != nil {
		fmt.Fprintln(stderr, "buildhook: "+formatErrorForDisplay(err, false))
	}
	return hook.ExitCode(err)
}
