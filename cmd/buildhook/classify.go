// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buildhook/buildhook/internal/compdb"
	"github.com/buildhook/buildhook/internal/rewrite"
)

// classifyOutput is the --json form of classify.
type classifyOutput struct {
	Command       string   `json:"command"`
	Family        string   `json:"family,omitempty"`
	SharedLibrary bool     `json:"shared_library"`
	Links         bool     `json:"links"`
	Inputs        []string `json:"inputs"`
	Output        string   `json:"output"`
}

func newClassifyCommand(app *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "classify [flags] -- <compiler command...>",
		Short: "Tell what a compiler invocation builds",
		Long: `Tell what a compiler invocation builds: its compiler family, whether it
links a shared library, and its source inputs and output.`,
		Example: `  buildhook classify -- gcc -shared -fPIC -o libfoo.so foo.c
  buildhook classify "clang -c main.c -o main.o"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command, err := commandFromArgs(args)
			if err != nil {
				return err
			}
			out := classify(command)
			if asJSON {
				enc := json.NewEncoder(app.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			family := out.Family
			if family == "" {
				family = SubtitleStyle.Render("(not a known compiler)")
			}
			printField(app.stdout, "family", family)
			printField(app.stdout, "shared library", yesNo(out.SharedLibrary))
			printField(app.stdout, "links", yesNo(out.Links))
			printField(app.stdout, "inputs", strings.Join(out.Inputs, " "))
			printField(app.stdout, "output", out.Output)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func classify(command rewrite.Command) classifyOutput {
	family, _ := rewrite.CompilerFamily(command.Name())
	line := compdb.ParseCommandLine(command.Args)
	inputs := line.Inputs
	if inputs == nil {
		inputs = []string{}
	}
	return classifyOutput{
		Command:       command.Path,
		Family:        family,
		SharedLibrary: rewrite.IsSharedLibraryBuild(command),
		Links:         line.Links,
		Inputs:        inputs,
		Output:        line.Output,
	}
}
