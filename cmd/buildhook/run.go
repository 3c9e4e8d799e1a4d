// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/buildhook/buildhook/internal/collector"
	"github.com/buildhook/buildhook/internal/compdb"
	"github.com/buildhook/buildhook/internal/config"
	"github.com/buildhook/buildhook/internal/hook"
	"github.com/buildhook/buildhook/internal/issue"
	"github.com/buildhook/buildhook/internal/pathresolve"
	"github.com/buildhook/buildhook/internal/watch"
	"github.com/buildhook/buildhook/pkg/types"
)

const (
	// buildWaitDelay bounds how long an interrupted build may take to exit
	// before it is killed.
	buildWaitDelay = 10 * time.Second
	// ptyDrainTimeout bounds the wait for pty output after the build exits;
	// background processes can keep the terminal open.
	ptyDrainTimeout = time.Second
)

type runFlagValues struct {
	watch bool
	pty   bool
	shims []string
}

func newRunCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	runFlags := &runFlagValues{}

	cmd := &cobra.Command{
		Use:   "run [flags] -- <build command...>",
		Short: "Run a build with its compilers intercepted",
		Long: `Run a build with its compilers intercepted.

A local collector serves the rules to every intercepted compiler and records
what each one ran. The build's exit status is passed through.`,
		Example: `  buildhook run -- make -j8
  buildhook run --fuzzer afl --sanitizer address -- ./configure
  buildhook run --rules toolchain.yaml --watch --compilation-db -- ninja`,
		Args: cobra.MinimumNArgs(1),
	}

	keys := addRuleFlags(cmd.Flags())
	f := cmd.Flags()
	f.Bool("compilation-db", false, "write a compilation database after the build")
	f.String("compilation-db-path", config.DefaultCompilationDBPath, "compilation database location")
	f.Int("listen-port", 0, "collector port on 127.0.0.1 (0 picks a free port)")
	f.Duration("settings-timeout", config.DefaultSettingsTimeout, "deadline for each compiler's rules fetch")
	maps.Copy(keys, flagKeys{
		"compilation_db":             "compilation-db",
		"compilation_db_path":        "compilation-db-path",
		"collector.listen_port":      "listen-port",
		"collector.settings_timeout": "settings-timeout",
	})
	f.BoolVar(&runFlags.watch, "watch", false, "reload the rules file when it changes")
	f.BoolVar(&runFlags.pty, "pty", false, "attach the build to a pseudo-terminal")
	f.StringSliceVar(&runFlags.shims, "shim", nil, "additional compiler names to intercept")
	// Flags after the build command belong to the build.
	f.SetInterspersed(false)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd, app, rootFlags, runFlags, keys, args)
	}
	return cmd
}

func runBuild(cmd *cobra.Command, app *App, rootFlags *rootFlagValues, runFlags *runFlagValues, keys flagKeys, args []string) error {
	ctx := cmd.Context()
	logger := app.logger

	cfg, source, err := app.loadConfig(ctx, cmd, rootFlags, keys)
	if err != nil {
		return err
	}
	logger.Debug("configuration loaded", "file", source)

	interception, rules, err := buildRules(cfg)
	if err != nil {
		return err
	}

	srv, err := collector.New(rules,
		collector.WithListenPort(cfg.Collector.ListenPort),
		collector.WithUnknownFlagPolicy(interception.Policy),
		collector.WithLogger(logger.WithPrefix("collector")),
	)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		ec := issue.NewErrorContext().
			WithOperation("start collector").
			WithResource(cfg.Collector.ListenPort.LoopbackAddress())
		if !cfg.Collector.ListenPort.IsAuto() {
			ec = ec.WithSuggestion("Pick another port with --listen-port, or 0 for a free one")
		}
		return ec.Wrap(err).BuildError()
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Warn("stop collector", "error", err)
		}
	}()

	shims, err := createShims(app, runFlags.shims)
	if err != nil {
		return err
	}
	defer func() {
		if err := shims.Remove(); err != nil {
			logger.Warn("remove shim directory", "path", shims.Path, "error", err)
		}
	}()

	env := interception.Env.Apply(app.environ())
	env = shims.Environ(env)
	env = append(env, srv.Env()...)
	env = append(env, collector.EnvSettingsTimeout+"="+cfg.Collector.SettingsTimeout.String())

	logger.Info("intercepting build",
		"rules", interception.Source,
		"collector", srv.URL(),
		"shims", shims.Path,
	)

	g, gctx := errgroup.WithContext(ctx)
	sideCtx, stopSide := context.WithCancel(gctx)
	defer stopSide()

	if runFlags.watch {
		if err := startRulesWatcher(sideCtx, g, cfg, srv, logger); err != nil {
			return err
		}
	}
	g.Go(func() error {
		select {
		case err, ok := <-srv.Err():
			if ok && err != nil {
				return fmt.Errorf("collector failed during the build: %w", err)
			}
		case <-sideCtx.Done():
		}
		return nil
	})

	var buildErr error
	g.Go(func() error {
		defer stopSide()
		buildErr = app.runChild(gctx, args, env, runFlags.pty)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	reports := srv.Reports()
	logger.Info("build finished", "invocations", len(reports))

	if cfg.CompilationDB {
		if err := writeCompilationDB(cfg.CompilationDBPath, reports, logger); err != nil {
			return err
		}
	}
	return buildErr
}

func createShims(app *App, extra []string) (*hook.ShimDir, error) {
	self, err := app.executable()
	if err == nil {
		var shims *hook.ShimDir
		if shims, err = hook.CreateShimDir("", self, extra...); err == nil {
			return shims, nil
		}
	}
	return nil, issue.NewErrorContext().
		WithOperation("create compiler shims").
		WithIssue(issue.ShimDirFailedId).
		Wrap(err).
		BuildError()
}

func startRulesWatcher(ctx context.Context, g *errgroup.Group, cfg *config.Config, srv *collector.Server, logger *log.Logger) error {
	if cfg.RulesFile == "" {
		logger.Warn("--watch needs a rules file, not watching")
		return nil
	}

	w, err := watch.NewRulesWatcher(cfg.RulesFile, srv, logger.WithPrefix("watch"), 0)
	if err != nil {
		return fmt.Errorf("watch rules file: %w", err)
	}
	g.Go(func() error {
		if err := w.Run(ctx); err != nil {
			logger.Warn("rules watcher stopped, keeping the current rules", "error", err)
		}
		return nil
	})
	return nil
}

// runChild runs the build and returns an *ExitError for any non-zero
// status. The build command is resolved on env's PATH, so a compiler run
// directly is intercepted too.
func (a *App) runChild(ctx context.Context, args, env []string, usePTY bool) error {
	searchPath, _ := hook.LookupEnv(env, "PATH")
	path, ok := pathresolve.WithSearchPath(searchPath).ResolveAbsolute(args[0])
	if !ok {
		return &ExitError{
			Code: types.ExitCommandNotFound,
			Err: issue.NewErrorContext().
				WithOperation("start build").
				WithResource(args[0]).
				WithSuggestion("Check the build command and your PATH").
				Wrap(exec.ErrNotFound).
				BuildError(),
		}
	}

	c := exec.CommandContext(ctx, path, args[1:]...)
	c.Args[0] = args[0]
	c.Env = env
	c.Cancel = func() error { return c.Process.Signal(os.Interrupt) }
	c.WaitDelay = buildWaitDelay

	var err error
	if usePTY {
		err = runInPTY(c, a.stdout)
	} else {
		c.Stdin = os.Stdin
		c.Stdout = a.stdout
		c.Stderr = a.stderr
		err = c.Run()
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		a.logger.Debug("build failed", "status", exitErr.ExitCode())
		return &ExitError{Code: types.ExitCodeOf(err)}
	}
	return &ExitError{
		Code: types.ExitCodeOf(err),
		Err: issue.NewErrorContext().
			WithOperation("run build").
			WithResource(args[0]).
			WithIssue(issue.BuildFailedId).
			Wrap(err).
			BuildError(),
	}
}

// runInPTY runs c on a new pseudo-terminal, copying its output to out.
// Input is not forwarded.
func runInPTY(c *exec.Cmd, out io.Writer) error {
	f, err := pty.Start(c)
	if err != nil {
		return fmt.Errorf("start build on a pty: %w", err)
	}
	defer f.Close()

	drained := make(chan struct{})
	go func() {
		// Reads end with EIO once the build side of the pty closes.
		_, _ = io.Copy(out, f)
		close(drained)
	}()

	err = c.Wait()
	select {
	case <-drained:
	case <-time.After(ptyDrainTimeout):
	}
	return err
}

func writeCompilationDB(path string, reports []collector.Report, logger *log.Logger) error {
	entries, err := compdb.FromReports(reports)
	if err != nil {
		return fmt.Errorf("build compilation database: %w", err)
	}
	if err := compdb.Write(path, entries); err != nil {
		return issue.NewErrorContext().
			WithOperation("write compilation database").
			WithResource(path).
			WithIssue(issue.PermissionDeniedId).
			Wrap(err).
			BuildError()
	}
	logger.Info("compilation database written", "path", path, "entries", len(entries))
	return nil
}
