// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"mvdan.cc/sh/v3/shell"

	"github.com/buildhook/buildhook/internal/compdb"
	"github.com/buildhook/buildhook/internal/issue"
	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/pkg/types"
)

type (
	rewriteFlagValues struct {
		resolve bool
		json    bool
	}

	// rewriteOutput is the --json form of a dry run.
	rewriteOutput struct {
		Outcome       rewrite.Outcome `json:"outcome"`
		Rule          *rewrite.Rule   `json:"rule,omitempty"`
		Original      rewrite.Command `json:"original"`
		Command       rewrite.Command `json:"command"`
		Resolved      string          `json:"resolved,omitempty"`
		UnknownFlags  []string        `json:"unknown_flags,omitempty"`
		SharedLibrary bool            `json:"shared_library"`
	}
)

// addRuleFlags defines the flags that select rules and returns their
// config keys.
func addRuleFlags(f *pflag.FlagSet) flagKeys {
	f.String("fuzzer", "", "fuzzer preset (libfuzzer, afl, llvm-cov)")
	f.String("sanitizer", "", "sanitizer for the fuzzer preset (address, memory, thread)")
	f.String("rules", "", "toolchain rules file (.cue, .json, .yaml, .yml, .toml)")
	f.String("unknown-flag-policy", "", "removal of flags with unknown arity (default-zero, strict)")
	return flagKeys{
		"fuzzer":              "fuzzer",
		"sanitizer":           "sanitizer",
		"rules_file":          "rules",
		"unknown_flag_policy": "unknown-flag-policy",
	}
}

func newRewriteCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	rewriteFlags := &rewriteFlagValues{}

	cmd := &cobra.Command{
		Use:   "rewrite [flags] -- <compiler command...>",
		Short: "Show how a compiler invocation would be rewritten",
		Long: `Show how a compiler invocation would be rewritten, without running it.

The command is given as separate arguments after --, or as one quoted
command line that is split the way a POSIX shell would split it.`,
		Example: `  buildhook rewrite -- gcc -O2 -c foo.c
  buildhook rewrite --fuzzer libfuzzer "clang++ -O3 -o app main.cc"
  buildhook rewrite --resolve --rules toolchain.yaml -- cc -c x.c`,
		Args: cobra.MinimumNArgs(1),
	}

	keys := addRuleFlags(cmd.Flags())
	cmd.Flags().BoolVar(&rewriteFlags.resolve, "resolve", false, "resolve the command on PATH as the exec hook would")
	cmd.Flags().BoolVar(&rewriteFlags.json, "json", false, "print the result as JSON")
	cmd.Flags().SetInterspersed(false)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runRewrite(cmd, app, rootFlags, rewriteFlags, keys, args)
	}
	return cmd
}

func runRewrite(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, rewriteFlags *rewriteFlagValues, keys flagKeys, args []string) error {
	cfg, _, err := app.loadConfig(cmd.Context(), cmd, rootFlags, keys)
	if err != nil {
		return err
	}
	interception, rules, err := buildRules(cfg)
	if err != nil {
		return err
	}

	original, err := commandFromArgs(args)
	if err != nil {
		return err
	}

	replacer := rewrite.NewReplacer(rules, rewrite.WithUnknownFlagPolicy(interception.Policy))
	result := replacer.Evaluate(original)

	out := rewriteOutput{
		Outcome:      result.Outcome,
		Original:     original,
		Command:      original,
		UnknownFlags: result.UnknownFlags,
	}
	if result.Outcome != rewrite.NoRuleMatched {
		out.Rule = &result.Rule
	}
	if result.Outcome == rewrite.Rewritten {
		out.Command = result.Command
	}
	out.SharedLibrary = rewrite.IsSharedLibraryBuild(out.Command)

	if rewriteFlags.resolve {
		resolved, err := rewrite.Resolve(out.Command, nil)
		if err != nil {
			return &ExitError{
				Code: types.ExitCommandNotFound,
				Err: issue.NewErrorContext().
					WithOperation("resolve compiler").
					WithResource(out.Command.Path).
					WithIssue(issue.CompilerNotFoundId).
					Wrap(err).
					BuildError(),
			}
		}
		out.Resolved = resolved.Path
	}

	if rewriteFlags.json {
		enc := json.NewEncoder(app.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	return printRewrite(app.stdout, out)
}

func printRewrite(w io.Writer, out rewriteOutput) error {
	original, err := compdb.QuoteArgs(out.Original.Args)
	if err != nil {
		return err
	}
	command, err := compdb.QuoteArgs(out.Command.Args)
	if err != nil {
		return err
	}

	changed := out.Outcome == rewrite.Rewritten
	rejected := out.Outcome == rewrite.RemovalRejected
	printField(w, "outcome", outcomeStyle(changed, rejected).Render(out.Outcome.String()))
	if out.Rule != nil {
		rule := out.Rule.Match
		if out.Rule.Replace != "" {
			rule += " -> " + out.Rule.Replace
		}
		printField(w, "rule", rule)
	}
	printField(w, "original", original)
	if changed {
		printField(w, "rewritten", CmdStyle.Render(command))
	}
	if out.Resolved != "" {
		printField(w, "resolved", out.Resolved)
	}
	if len(out.UnknownFlags) > 0 {
		printField(w, "unknown flags", WarningStyle.Render(strings.Join(out.UnknownFlags, " ")))
	}
	printField(w, "shared library", yesNo(out.SharedLibrary))
	return nil
}

// commandFromArgs builds a command from argument words, or from a single
// command line split with shell word rules.
func commandFromArgs(args []string) (rewrite.Command, error) {
	argv := args
	if len(args) == 1 && strings.ContainsAny(args[0], " \t\n'\"\\$") {
		fields, err := shell.Fields(args[0], nil)
		if err != nil {
			return rewrite.Command{}, fmt.Errorf("parse command line: %w", err)
		}
		argv = fields
	}
	return rewrite.CommandFromArgv(argv)
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
