// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/buildhook/buildhook/internal/config"
)

// newConfigCommand creates the `buildhook config` command tree.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage buildhook configuration",
		Long: `Manage buildhook configuration.

Configuration is read from config.cue in:
  - Linux: $XDG_CONFIG_HOME/buildhook (~/.config/buildhook)
  - macOS: ~/Library/Application Support/buildhook
  - Windows: %AppData%\buildhook

then from config.cue in the working directory. BUILDHOOK_* environment
variables, CC and CXX override the file; command-line flags override both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, source, err := app.loadConfig(cmd.Context(), cmd, rootFlags, nil)
			if err != nil {
				return err
			}
			showConfig(app.stdout, cfg, source)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, cfgPath)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, created, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			if !created {
				fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), cfgPath)
				return nil
			}
			fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), cfgPath)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.loadConfig(cmd.Context(), cmd, rootFlags, nil)
			if err != nil {
				return err
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, source string) {
	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if source == "" {
		source = SubtitleStyle.Render("(using defaults)")
	}
	fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render("Config file"), source)
	fmt.Fprintln(w)

	value := func(key, v string) {
		if v == "" {
			v = SubtitleStyle.Render("(not set)")
		} else {
			v = SuccessStyle.Render(v)
		}
		fmt.Fprintf(w, "%s: %s\n", CmdStyle.Render(key), v)
	}
	list := func(key string, items []string) {
		value(key, strings.Join(items, " "))
	}

	value("match_cc", cfg.MatchCC)
	value("match_cxx", cfg.MatchCXX)
	value("replace_cc", cfg.ReplaceCC)
	value("replace_cxx", cfg.ReplaceCXX)
	list("add_arguments", cfg.AddArguments)
	list("remove_arguments", cfg.RemoveArguments)
	value("fuzzer", cfg.Fuzzer.String())
	value("sanitizer", cfg.Sanitizer.String())
	value("unknown_flag_policy", cfg.UnknownFlagPolicy.String())
	value("rules_file", cfg.RulesFile)
	value("compilation_db", fmt.Sprintf("%v", cfg.CompilationDB))
	value("compilation_db_path", cfg.CompilationDBPath)
	value("log_level", string(cfg.LogLevel))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", CmdStyle.Render("collector"))
	fmt.Fprintf(w, "  listen_port: %s\n", SuccessStyle.Render(cfg.Collector.ListenPort.String()))
	fmt.Fprintf(w, "  settings_timeout: %s\n", SuccessStyle.Render(cfg.Collector.SettingsTimeout.String()))
}
