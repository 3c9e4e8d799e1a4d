// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/buildhook/buildhook/internal/config"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives an App and reads configuration through its Config provider.
	App struct {
		Config config.Provider
		stdout io.Writer
		stderr io.Writer
		logger *log.Logger
		// executable returns the binary that shims link to.
		executable func() (string, error)
		// environ returns the environment builds start from.
		environ func() []string
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		Stdout     io.Writer
		Stderr     io.Writer
		Executable func() (string, error)
		Environ    func() []string
	}

	// rootFlagValues holds the persistent flags shared by all commands.
	rootFlagValues struct {
		configPath string
		verbose    bool
		logLevel   string
	}

	// flagKeys maps config keys to the flag names that override them.
	flagKeys map[string]string
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Executable == nil {
		deps.Executable = os.Executable
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}

	return &App{
		Config:     deps.Config,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		logger:     newLogger(deps.Stderr),
		executable: deps.Executable,
		environ:    deps.Environ,
	}, nil
}

// newLogger returns the CLI logger. It is also installed as the slog
// default so library packages that warn through slog share its output.
func newLogger(w io.Writer) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Prefix: "buildhook",
		Level:  log.WarnLevel,
	})
	slog.SetDefault(slog.New(logger))
	return logger
}

// loadConfig loads configuration with the root flags and any of keys'
// flags that cmd defines, then applies the configured log level.
func (a *App) loadConfig(ctx context.Context, cmd *cobra.Command, rootFlags *rootFlagValues, keys flagKeys) (*config.Config, string, error) {
	opts := config.LoadOptions{
		ConfigFilePath: rootFlags.configPath,
		Flags:          make(map[string]*pflag.Flag, len(keys)+1),
	}
	for key, name := range keys {
		if f := cmd.Flags().Lookup(name); f != nil {
			opts.Flags[key] = f
		}
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		opts.Flags["log_level"] = f
	}

	cfg, source, err := a.Config.LoadWithSource(ctx, opts)
	if err != nil {
		return nil, "", err
	}
	a.setLogLevel(cfg.LogLevel, rootFlags.verbose)
	return cfg, source, nil
}

func (a *App) setLogLevel(level config.LogLevel, verbose bool) {
	if verbose {
		a.logger.SetLevel(log.DebugLevel)
		return
	}
	if parsed, err := log.ParseLevel(string(level)); err == nil {
		a.logger.SetLevel(parsed)
	}
}
