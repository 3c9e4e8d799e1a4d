// SPDX-License-Identifier: MPL-2.0

package hook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/buildhook/buildhook/internal/collector"
	"github.com/buildhook/buildhook/internal/issue"
	"github.com/buildhook/buildhook/internal/pathresolve"
	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/pkg/types"
)

// ErrExec is the sentinel wrapped by ExecError.
var ErrExec = errors.New("exec failed")

type (
	// Execer replaces the current process with path. It only returns on
	// failure.
	Execer interface {
		Exec(path string, argv []string, env []string) error
	}

	// Collector is the part of collector.Client the hook uses.
	Collector interface {
		FetchSettings(ctx context.Context) (collector.Settings, error)
		Report(ctx context.Context, r collector.Report) (string, error)
	}

	// ExecError reports a compiler that was found but could not be started.
	ExecError struct {
		Path string
		Err  error
	}

	// Hook intercepts one compiler invocation.
	Hook struct {
		collector Collector
		execer    Execer
		logger    *log.Logger
		environ   []string
		dir       string
		self      string
	}

	// Option configures a Hook.
	Option func(*Hook)

	systemExecer struct{}
)

// Exec calls execve(2).
func (systemExecer) Exec(path string, argv []string, env []string) error {
	return unix.Exec(path, argv, env)
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrExec, e.Path, e.Err)
}

// Unwrap returns both ErrExec and the underlying error.
func (e *ExecError) Unwrap() []error { return []error{ErrExec, e.Err} }

// WithCollector sets the settings source. Nil means no collector: every
// command runs unmodified.
func WithCollector(c Collector) Option {
	return func(h *Hook) { h.collector = c }
}

// WithExecer replaces execve(2).
func WithExecer(e Execer) Option {
	return func(h *Hook) { h.execer = e }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(h *Hook) { h.logger = logger }
}

// WithEnviron sets the environment the hook reads and passes on.
func WithEnviron(environ []string) Option {
	return func(h *Hook) { h.environ = environ }
}

// WithDirectory sets the working directory that is reported.
func WithDirectory(dir string) Option {
	return func(h *Hook) { h.dir = dir }
}

// WithSelf sets the path of the buildhook binary. A command resolving to it
// is treated as not found, which stops a misconfigured PATH from looping.
func WithSelf(path string) Option {
	return func(h *Hook) { h.self = path }
}

// New creates a hook. Without options it talks to the collector named in
// the process environment, execs for real and logs warnings to stderr.
func New(opts ...Option) (*Hook, error) {
	h := &Hook{
		execer:  systemExecer{},
		environ: os.Environ(),
	}
	if c, err := collector.NewClientFromEnv(); err == nil {
		h.collector = c
	}
	for _, opt := range opts {
		opt(h)
	}

	if h.logger == nil {
		h.logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "buildhook-hook", Level: log.WarnLevel})
	}
	if h.dir == "" {
		dir, err := pathresolve.CurrentDirectory()
		if err != nil {
			return nil, fmt.Errorf("reading working directory: %w", err)
		}
		h.dir = dir
	}
	if h.self == "" {
		if exe, err := os.Executable(); err == nil {
			if resolved, err := filepath.EvalSymlinks(exe); err == nil {
				h.self = resolved
			}
		}
	}
	return h, nil
}

// Run handles argv and execs the compiler that should run. It only returns
// on failure, or after a test Execer returns nil.
//
// The shim directory is removed from PATH both for resolution and in the
// compiler's environment, so neither the hook nor a compiler wrapper that
// runs "clang" through PATH reaches the hook again.
func (h *Hook) Run(ctx context.Context, argv []string) error {
	original, err := rewrite.CommandFromArgv(argv)
	if err != nil {
		return err
	}

	path, _ := LookupEnv(h.environ, "PATH")
	if shimDir, ok := LookupEnv(h.environ, EnvShimDir); ok {
		path = pathresolve.RemoveDir(path, shimDir)
		original = unshim(original, shimDir)
	}
	resolver := pathresolve.WithSearchPath(path)
	env := unsetEnv(setEnv(h.environ, "PATH", path), EnvShimDir)

	result, reporting := h.evaluate(ctx, original)

	target := original
	if result.Outcome == rewrite.Rewritten {
		target = result.Command
	}
	resolved, err := h.resolve(target, resolver)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("run compiler").
			WithResource(target.Path).
			WithIssue(issue.CompilerNotFoundId).
			WithSuggestion("Install the compiler or put it on PATH").
			WithSuggestion("Check replace_cc, replace_cxx and the rules file for typos").
			Wrap(err).
			BuildError()
	}
	if result.Outcome == rewrite.Rewritten {
		result.Command = resolved
	}

	if reporting {
		h.report(ctx, collector.NewReport(original, result, h.dir))
	}
	h.logger.Debug("exec", "outcome", result.Outcome, "path", resolved.Path, "args", resolved.String())

	if err := h.execer.Exec(resolved.Path, resolved.Args, env); err != nil {
		return &ExecError{Path: resolved.Path, Err: err}
	}
	return nil
}

// evaluate applies the collector's rules. The second result reports whether
// the collector answered; without it nothing is rewritten or reported.
func (h *Hook) evaluate(ctx context.Context, original rewrite.Command) (rewrite.Result, bool) {
	none := rewrite.Result{Outcome: rewrite.NoRuleMatched}
	if h.collector == nil {
		h.logger.Warn("no collector configured, running the original command", "command", original.Path)
		return none, false
	}

	settings, err := h.collector.FetchSettings(ctx)
	if err != nil {
		h.logger.Warn("collector unreachable, running the original command", "command", original.Path, "error", err)
		return none, false
	}
	replacer, err := settings.Replacer()
	if err != nil {
		h.logger.Warn("collector sent unusable rules, running the original command", "error", err)
		return none, false
	}

	result := replacer.Evaluate(original)
	if result.Outcome == rewrite.RemovalRejected {
		h.logger.Warn("removal flags have no known arity, running the original command",
			"command", original.Path,
			"flags", result.UnknownFlags,
		)
	}
	return result, true
}

// unshim turns a shim called by its absolute path, as build systems that
// record the compiler path do, back into the bare compiler name so that it
// is looked up on the stripped PATH. argv is left alone.
func unshim(cmd rewrite.Command, shimDir string) rewrite.Command {
	if !filepath.IsAbs(cmd.Path) || filepath.Dir(cmd.Path) != filepath.Clean(shimDir) {
		return cmd
	}
	out := cmd.Clone()
	out.Path = pathresolve.Basename(cmd.Path)
	return out
}

func (h *Hook) resolve(cmd rewrite.Command, resolver rewrite.Resolver) (rewrite.Command, error) {
	resolved, err := rewrite.Resolve(cmd, resolver)
	if err != nil {
		return rewrite.Command{}, err
	}
	if h.self != "" && resolved.Path == h.self {
		return rewrite.Command{}, &rewrite.ResolutionError{Command: cmd.Path}
	}
	return resolved, nil
}

func (h *Hook) report(ctx context.Context, r collector.Report) {
	if _, err := h.collector.Report(ctx, r); err != nil {
		h.logger.Warn("could not report invocation", "error", err)
	}
}

// ExitCode maps a Run error to the status the hook process exits with: 127
// when the compiler was not found, 126 when it could not be executed.
func ExitCode(err error) types.ExitCode {
	switch {
	case err == nil:
		return types.ExitSuccess
	case errors.Is(err, rewrite.ErrPathResolution):
		return types.ExitCommandNotFound
	case errors.Is(err, ErrExec):
		return types.ExitCannotExecute
	default:
		return types.ExitFailure
	}
}
