// SPDX-License-Identifier: MPL-2.0

package hook

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/buildhook/buildhook/internal/collector"
	"github.com/buildhook/buildhook/internal/issue"
	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/internal/testutil"
	"github.com/buildhook/buildhook/pkg/types"
)

type (
	execCall struct {
		path string
		argv []string
		env  []string
	}

	fakeExecer struct {
		calls []execCall
		err   error
	}

	fakeCollector struct {
		settings  collector.Settings
		fetchErr  error
		reportErr error
		reports   []collector.Report
	}
)

func (f *fakeExecer) Exec(path string, argv []string, env []string) error {
	f.calls = append(f.calls, execCall{path: path, argv: argv, env: env})
	return f.err
}

func (f *fakeCollector) FetchSettings(context.Context) (collector.Settings, error) {
	return f.settings, f.fetchErr
}

func (f *fakeCollector) Report(_ context.Context, r collector.Report) (string, error) {
	f.reports = append(f.reports, r)
	return "id", f.reportErr
}

// toolchain lays out a bin directory with gcc and afl-clang, plus a shim
// directory whose gcc would be the hook itself.
type toolchain struct {
	bin, shims, self string
	gcc, afl         string
}

func newToolchain(t *testing.T) toolchain {
	t.Helper()
	root := testutil.MustEvalSymlinks(t, t.TempDir())

	tc := toolchain{
		bin:   filepath.Join(root, "bin"),
		shims: filepath.Join(root, "shims"),
	}
	tc.gcc = testutil.MustWriteExecutable(t, tc.bin, "gcc")
	tc.afl = testutil.MustWriteExecutable(t, tc.bin, "afl-clang")
	tc.self = testutil.MustWriteExecutable(t, root, "buildhook")
	testutil.MustMkdirAll(t, tc.shims)
	testutil.MustSymlink(t, tc.self, filepath.Join(tc.shims, "gcc"))
	return tc
}

func (tc toolchain) environ() []string {
	return []string{
		"HOME=/home/u",
		"PATH=" + tc.shims + ":" + tc.bin,
		EnvShimDir + "=" + tc.shims,
	}
}

func settingsFor(policy rewrite.UnknownFlagPolicy, rules ...rewrite.Rule) collector.Settings {
	return collector.Settings{Version: collector.SettingsVersion, UnknownFlagPolicy: policy, Rules: rules}
}

func newTestHook(t *testing.T, tc toolchain, c Collector, ex Execer) *Hook {
	t.Helper()
	h, err := New(
		WithCollector(c),
		WithExecer(ex),
		WithLogger(log.New(io.Discard)),
		WithEnviron(tc.environ()),
		WithDirectory("/work"),
		WithSelf(tc.self),
	)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return h
}

func TestRun_Rewritten(t *testing.T) {
	t.Parallel()

	tc := newToolchain(t)
	coll := &fakeCollector{settings: settingsFor("", rewrite.Rule{
		Match:   "gcc",
		Replace: "afl-clang",
		Add:     []string{"-O0"},
		Remove:  []string{"-O2"},
	})}
	ex := &fakeExecer{}
	h := newTestHook(t, tc, coll, ex)

	if err := h.Run(context.Background(), []string{"gcc", "-O2", "-c", "a.c"}); err != nil {
		t.Fatalf("Run() = %v", err)
	}

	if len(ex.calls) != 1 {
		t.Fatalf("Exec called %d times", len(ex.calls))
	}
	call := ex.calls[0]
	if call.path != tc.afl {
		t.Errorf("exec path = %q, want %q", call.path, tc.afl)
	}
	if diff := cmp.Diff([]string{"afl-clang", "-c", "a.c", "-O0"}, call.argv); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
	wantEnv := []string{"HOME=/home/u", "PATH=" + tc.bin}
	if diff := cmp.Diff(wantEnv, call.env); diff != "" {
		t.Errorf("child env mismatch (-want +got):\n%s", diff)
	}

	if len(coll.reports) != 1 {
		t.Fatalf("%d reports sent", len(coll.reports))
	}
	r := coll.reports[0]
	if r.Outcome != rewrite.Rewritten || r.Directory != "/work" {
		t.Errorf("report = %+v", r)
	}
	if r.Replaced.Path != tc.afl || r.Original.Path != "gcc" {
		t.Errorf("report commands: original %q, replaced %q", r.Original.Path, r.Replaced.Path)
	}
}

func TestRun_OriginalCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		collector   *fakeCollector
		wantOutcome rewrite.Outcome
		wantReport  bool
	}{
		{
			name:        "no rule matched",
			collector:   &fakeCollector{settings: settingsFor("", rewrite.Rule{Match: "clang", Replace: "afl-clang"})},
			wantOutcome: rewrite.NoRuleMatched,
			wantReport:  true,
		},
		{
			name:        "matched no-op",
			collector:   &fakeCollector{settings: settingsFor("", rewrite.Rule{Match: "gcc"})},
			wantOutcome: rewrite.MatchedNoOp,
			wantReport:  true,
		},
		{
			name:      "strict policy rejects unknown removal",
			collector: &fakeCollector{settings: settingsFor(rewrite.PolicyStrict, rewrite.Rule{
				Match:   "gcc",
				Replace: "afl-clang",
				Remove:  []string{"--made-up-flag"},
			})},
			wantOutcome: rewrite.RemovalRejected,
			wantReport:  true,
		},
		{
			name:        "collector unreachable",
			collector:   &fakeCollector{fetchErr: errors.New("connection refused")},
			wantOutcome: rewrite.NoRuleMatched,
		},
		{
			name:        "unsupported settings",
			collector:   &fakeCollector{settings: settingsFor("", rewrite.Rule{Match: "gcc("})},
			wantOutcome: rewrite.NoRuleMatched,
		},
		{
			name:        "report failure is not fatal",
			collector:   &fakeCollector{settings: settingsFor(""), reportErr: errors.New("boom")},
			wantOutcome: rewrite.NoRuleMatched,
			wantReport:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tc := newToolchain(t)
			ex := &fakeExecer{}
			h := newTestHook(t, tc, tt.collector, ex)

			argv := []string{"gcc", "-O2", "--made-up-flag", "-c", "a.c"}
			if err := h.Run(context.Background(), argv); err != nil {
				t.Fatalf("Run() = %v", err)
			}
			if len(ex.calls) != 1 || ex.calls[0].path != tc.gcc {
				t.Fatalf("exec calls = %+v, want the real gcc", ex.calls)
			}
			if diff := cmp.Diff(argv, ex.calls[0].argv); diff != "" {
				t.Errorf("argv should be unchanged (-want +got):\n%s", diff)
			}

			if !tt.wantReport {
				if len(tt.collector.reports) != 0 {
					t.Errorf("unexpected reports: %+v", tt.collector.reports)
				}
				return
			}
			if len(tt.collector.reports) != 1 {
				t.Fatalf("%d reports sent, want 1", len(tt.collector.reports))
			}
			r := tt.collector.reports[0]
			if r.Outcome != tt.wantOutcome || !r.Replaced.IsZero() {
				t.Errorf("report = %+v", r)
			}
		})
	}
}

func TestRun_NoCollector(t *testing.T) {
	t.Parallel()

	tc := newToolchain(t)
	ex := &fakeExecer{}
	h := newTestHook(t, tc, nil, ex)

	if err := h.Run(context.Background(), []string{"gcc", "a.c"}); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(ex.calls) != 1 || ex.calls[0].path != tc.gcc {
		t.Errorf("exec calls = %+v", ex.calls)
	}
}

func TestRun_CompilerNotFound(t *testing.T) {
	t.Parallel()

	tc := newToolchain(t)
	coll := &fakeCollector{settings: settingsFor("", rewrite.Rule{Match: "gcc", Replace: "clang-99"})}
	ex := &fakeExecer{}
	h := newTestHook(t, tc, coll, ex)

	err := h.Run(context.Background(), []string{"gcc", "a.c"})
	if !errors.Is(err, rewrite.ErrPathResolution) {
		t.Fatalf("Run() = %v, want ErrPathResolution", err)
	}
	if ExitCode(err) != types.ExitCommandNotFound {
		t.Errorf("ExitCode() = %d, want 127", ExitCode(err))
	}
	if iss, ok := issue.IssueOf(err); !ok || iss.Id() != issue.CompilerNotFoundId {
		t.Errorf("IssueOf() = %v, %v", iss, ok)
	}
	if len(ex.calls) != 0 || len(coll.reports) != 0 {
		t.Error("nothing should run or be reported when the replacement is missing")
	}
}

func TestRun_AbsoluteShimPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		collector *fakeCollector
	}{
		{name: "no collector"},
		{name: "no rule matched", collector: &fakeCollector{settings: settingsFor("", rewrite.Rule{Match: "clang", Replace: "afl-clang"})}},
		{name: "matched no-op", collector: &fakeCollector{settings: settingsFor("", rewrite.Rule{Match: "gcc"})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tc := newToolchain(t)
			coll := tt.collector
			var c Collector
			if coll != nil {
				c = coll
			}
			ex := &fakeExecer{}
			h := newTestHook(t, tc, c, ex)

			argv := []string{filepath.Join(tc.shims, "gcc"), "-c", "a.c"}
			if err := h.Run(context.Background(), argv); err != nil {
				t.Fatalf("Run() = %v", err)
			}
			if len(ex.calls) != 1 || ex.calls[0].path != tc.gcc {
				t.Fatalf("exec calls = %+v, want the real gcc", ex.calls)
			}
			if diff := cmp.Diff(argv, ex.calls[0].argv); diff != "" {
				t.Errorf("argv should be unchanged (-want +got):\n%s", diff)
			}
			if coll != nil {
				if len(coll.reports) != 1 || coll.reports[0].Original.Path != "gcc" {
					t.Errorf("reports = %+v, want the compiler name without the shim directory", coll.reports)
				}
			}
		})
	}
}

func TestRun_AbsolutePathOutsideShimDir(t *testing.T) {
	t.Parallel()

	tc := newToolchain(t)
	ex := &fakeExecer{}
	h := newTestHook(t, tc, nil, ex)

	if err := h.Run(context.Background(), []string{tc.gcc, "a.c"}); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(ex.calls) != 1 || ex.calls[0].path != tc.gcc {
		t.Errorf("exec calls = %+v", ex.calls)
	}
}

func TestRun_NeverExecsItself(t *testing.T) {
	t.Parallel()

	tc := newToolchain(t)
	environ := []string{"PATH=" + tc.shims}
	ex := &fakeExecer{}
	h, err := New(
		WithCollector(nil),
		WithExecer(ex),
		WithLogger(log.New(io.Discard)),
		WithEnviron(environ),
		WithDirectory("/work"),
		WithSelf(tc.self),
	)
	if err != nil {
		t.Fatal(err)
	}

	err = h.Run(context.Background(), []string{"gcc", "a.c"})
	if !errors.Is(err, rewrite.ErrPathResolution) {
		t.Errorf("Run() = %v; a shim resolving to the hook must not be executed", err)
	}
	if len(ex.calls) != 0 {
		t.Errorf("exec calls = %+v", ex.calls)
	}
}

func TestRun_ExecFailure(t *testing.T) {
	t.Parallel()

	tc := newToolchain(t)
	ex := &fakeExecer{err: syscall.EACCES}
	h := newTestHook(t, tc, nil, ex)

	err := h.Run(context.Background(), []string{"gcc", "a.c"})
	var execErr *ExecError
	if !errors.As(err, &execErr) || execErr.Path != tc.gcc {
		t.Fatalf("Run() = %v, want *ExecError for gcc", err)
	}
	if !errors.Is(err, syscall.EACCES) {
		t.Error("ExecError should unwrap to the errno")
	}
	if ExitCode(err) != types.ExitCannotExecute {
		t.Errorf("ExitCode() = %d, want 126", ExitCode(err))
	}
}

func TestRun_EmptyArgv(t *testing.T) {
	t.Parallel()

	h := newTestHook(t, newToolchain(t), nil, &fakeExecer{})
	if err := h.Run(context.Background(), nil); !errors.Is(err, rewrite.ErrEmptyArguments) {
		t.Errorf("Run(nil) = %v", err)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if ExitCode(nil) != types.ExitSuccess {
		t.Error("nil error should exit 0")
	}
	if ExitCode(errors.New("x")) != types.ExitFailure {
		t.Error("other errors should exit 1")
	}
}
