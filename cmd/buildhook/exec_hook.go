// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/buildhook/buildhook/pkg/types"
)

// newExecHookCommand creates the hidden `buildhook exec-hook` command. It
// runs the hook on an explicit argv, for build systems that take a compiler
// launcher instead of a compiler on PATH.
func newExecHookCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:    "exec-hook -- <compiler command...>",
		Short:  "Run one compiler invocation through the hook",
		Hidden: true,
		Args:   cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// On success the hook replaces this process and never returns.
			if code := runHook(cmd.Context(), args, app.stderr); code != types.ExitSuccess {
				return &ExitError{Code: code}
			}
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}
