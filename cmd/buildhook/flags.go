// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/buildhook/buildhook/internal/rewrite"
)

func newFlagsCommand(app *App) *cobra.Command {
	var valuesOnly bool

	cmd := &cobra.Command{
		Use:   "flags [flag...]",
		Short: "List compiler flags with a known arity",
		Long: `List compiler flags with a known arity.

Removing a flag also removes the value tokens that follow it. Flags missing
from this table are assumed to take no value, or are refused under the
strict unknown flag policy.`,
		Example: `  buildhook flags
  buildhook flags -- -o -MF -fsanitize=address`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listFlags(app.stdout, valuesOnly)
				return nil
			}
			for _, flag := range args {
				arity, ok := rewrite.ArityOf(flag)
				if !ok {
					fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render(flag), WarningStyle.Render("unknown (treated as taking no value)"))
					continue
				}
				fmt.Fprintf(app.stdout, "%s: %s\n", CmdStyle.Render(flag), arityLabel(arity))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&valuesOnly, "values", false, "only list flags that take a value")
	return cmd
}

func listFlags(w io.Writer, valuesOnly bool) {
	for _, flag := range rewrite.KnownFlags() {
		arity := rewrite.ArityOrDefault(flag)
		if valuesOnly && arity == rewrite.NoValue {
			continue
		}
		fmt.Fprintf(w, "%s %s\n", CmdStyle.Render(fmt.Sprintf("%-28s", flag)), arityLabel(arity))
	}
}

func arityLabel(a rewrite.Arity) string {
	switch a {
	case rewrite.NoValue:
		return "no value"
	case rewrite.OneValue:
		return "1 value"
	default:
		return fmt.Sprintf("%d values", a)
	}
}
