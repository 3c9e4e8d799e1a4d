// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/buildhook/buildhook/internal/config"
	"github.com/buildhook/buildhook/internal/issue"
	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/pkg/types"
)

// buildRules resolves cfg into interception settings and compiles their
// rules.
func buildRules(cfg *config.Config) (*config.Interception, *rewrite.RuleSet, error) {
	interception, err := config.BuildInterception(cfg)
	if err != nil {
		return nil, nil, issue.NewErrorContext().
			WithOperation("load rules file").
			WithResource(cfg.RulesFile).
			WithIssue(issue.RulesFileInvalidId).
			WithSuggestion("Run 'buildhook rules check " + cfg.RulesFile + "'").
			Wrap(err).
			BuildError()
	}
	rules, err := interception.RuleSet()
	if err != nil {
		return nil, nil, issue.NewErrorContext().
			WithOperation("compile rules").
			WithResource(interception.Source).
			WithIssue(issue.InvalidRulePatternId).
			WithSuggestion("Check match_cc and match_cxx").
			Wrap(err).
			BuildError()
	}
	return interception, rules, nil
}

func newRulesCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and validate rewrite rules",
		Long: `Inspect and validate rewrite rules.

Without a file argument, the subcommands use the rules the current
configuration resolves to: a rules file when one is set, otherwise the cc and
cxx rules built from the fuzzer preset and add/remove arguments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var raw bool
	showCmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Render the rules as a document",
		Args:  cobra.MaximumNArgs(1),
	}
	showKeys := addRuleFlags(showCmd.Flags())
	showCmd.Flags().BoolVar(&raw, "raw", false, "print markdown without rendering it")
	showCmd.RunE = func(cmd *cobra.Command, args []string) error {
		interception, err := rulesFor(cmd.Context(), cmd, app, rootFlags, showKeys, args)
		if err != nil {
			return err
		}
		md := rulesMarkdown(interception)
		if raw {
			fmt.Fprint(app.stdout, md)
			return nil
		}
		rendered, err := glamour.Render(md, issueStyle)
		if err != nil {
			return fmt.Errorf("render rules: %w", err)
		}
		fmt.Fprint(app.stdout, rendered)
		return nil
	}

	dumpCmd := &cobra.Command{
		Use:   "dump [file]",
		Short: "Output the rules as a CUE rules file",
		Args:  cobra.MaximumNArgs(1),
	}
	dumpKeys := addRuleFlags(dumpCmd.Flags())
	dumpCmd.RunE = func(cmd *cobra.Command, args []string) error {
		interception, err := rulesFor(cmd.Context(), cmd, app, rootFlags, dumpKeys, args)
		if err != nil {
			return err
		}
		fmt.Fprint(app.stdout, config.GenerateRulesCUE(interception.Tools()))
		return nil
	}

	checkCmd := &cobra.Command{
		Use:   "check <file...>",
		Short: "Validate rules files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				rf, err := config.LoadRulesFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(app.stdout, "%s %s\n", ErrorStyle.Render("✗"), err)
					continue
				}
				fmt.Fprintf(app.stdout, "%s %s: %d tools\n", SuccessStyle.Render("✓"), path, len(rf.Tools))
			}
			if failed > 0 {
				return &ExitError{Code: types.ExitFailure}
			}
			return nil
		},
	}

	rulesCmd.AddCommand(showCmd, dumpCmd, checkCmd)
	return rulesCmd
}

// rulesFor returns the interception of the rules file in args, or of the
// configuration when args is empty.
func rulesFor(ctx context.Context, cmd *cobra.Command, app *App, rootFlags *rootFlagValues, keys flagKeys, args []string) (*config.Interception, error) {
	cfg, _, err := app.loadConfig(ctx, cmd, rootFlags, keys)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		cfg.RulesFile = args[0]
	}
	interception, _, err := buildRules(cfg)
	return interception, err
}

func rulesMarkdown(i *config.Interception) string {
	var md strings.Builder

	md.WriteString("# Rewrite rules\n\n")
	fmt.Fprintf(&md, "Rules from **%s**, unknown flag policy **%s**. ", i.Source, i.Policy)
	md.WriteString("The first rule whose pattern matches a compiler's base name applies.\n")

	for n, tool := range i.Tools() {
		fmt.Fprintf(&md, "\n## %d. %s\n\n", n+1, tool.Name)
		fmt.Fprintf(&md, "- **match**: `%s`\n", tool.Match)
		if tool.Replace == "" {
			md.WriteString("- **replace**: *(none, the command runs unchanged)*\n")
		} else {
			fmt.Fprintf(&md, "- **replace**: `%s`\n", tool.Replace)
		}
		if len(tool.Remove) > 0 {
			fmt.Fprintf(&md, "- **remove**: %s\n", codeList(tool.Remove))
		}
		if len(tool.Add) > 0 {
			fmt.Fprintf(&md, "- **add**: %s\n", codeList(tool.Add))
		}
	}

	if !i.Env.IsZero() {
		md.WriteString("\n## Build environment\n\n")
		keys := make([]string, 0, len(i.Env.Set))
		for k := range i.Env.Set {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&md, "- set `%s=%s`\n", k, i.Env.Set[k])
		}
		for _, k := range i.Env.Unset {
			fmt.Fprintf(&md, "- unset `%s`\n", k)
		}
	}
	return md.String()
}

func codeList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "`" + item + "`"
	}
	return strings.Join(quoted, " ")
}
