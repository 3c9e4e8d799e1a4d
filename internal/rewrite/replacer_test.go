// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// fixedResolver resolves names from a map.
type fixedResolver map[string]string

func (f fixedResolver) ResolveAbsolute(command string) (string, bool) {
	p, ok := f[command]
	return p, ok
}

func mustRuleSet(t *testing.T, rules ...Rule) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules)
	if err != nil {
		t.Fatalf("NewRuleSet() error = %v", err)
	}
	return rs
}

func mustCommand(t *testing.T, path string, args ...string) Command {
	t.Helper()
	cmd, err := NewCommand(path, args)
	if err != nil {
		t.Fatalf("NewCommand(%q) error = %v", path, err)
	}
	return cmd
}

func TestReplacer_Rewrite_AFLExample(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{
		Match:   DefaultCCPattern,
		Replace: "afl-gcc",
		Add:     []string{"-O0"},
		Remove:  []string{"-O3"},
	})
	original := mustCommand(t, "/usr/bin/gcc", "gcc", "hello.c", "-o", "foo")

	got, ok := NewReplacer(rs).Rewrite(original)
	if !ok {
		t.Fatal("Rewrite() = false, want true")
	}

	want := Command{Path: "afl-gcc", Args: []string{"afl-gcc", "hello.c", "-o", "foo", "-O0"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rewrite() mismatch (-want +got):\n%s", diff)
	}

	resolved, err := Resolve(got, fixedResolver{"afl-gcc": "/opt/afl/bin/afl-gcc"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.Path != "/opt/afl/bin/afl-gcc" {
		t.Errorf("Resolve().Path = %q, want %q", resolved.Path, "/opt/afl/bin/afl-gcc")
	}
	if resolved.Args[0] != "afl-gcc" {
		t.Errorf("Resolve().Args[0] = %q, want slot 0 untouched", resolved.Args[0])
	}
}

func TestReplacer_Rewrite_RemovesFlagWithValue(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{
		Match:   DefaultCCPattern,
		Replace: "/usr/lib/llvm/bin/clang",
		Add:     []string{"-O0"},
		Remove:  []string{"-O2", "-I"},
	})
	original := mustCommand(t, "clang", "clang", "test.cpp", "-I", "DIR", "-O2", "-o", "test.o")

	got, ok := NewReplacer(rs).Rewrite(original)
	if !ok {
		t.Fatal("Rewrite() = false, want true")
	}

	wantArgs := []string{"clang", "test.cpp", "-o", "test.o", "-O0"}
	if diff := cmp.Diff(wantArgs, got.Args); diff != "" {
		t.Errorf("Rewrite().Args mismatch (-want +got):\n%s", diff)
	}
	if got.Path != "/usr/lib/llvm/bin/clang" {
		t.Errorf("Rewrite().Path = %q, want replacement", got.Path)
	}
}

func TestReplacer_Evaluate_Outcomes(t *testing.T) {
	t.Parallel()

	noop := Rule{Match: "cc", Add: []string{"-g"}, Remove: []string{"-c"}}
	rewrite := Rule{Match: "gcc", Replace: "clang"}
	rs := mustRuleSet(t, noop, rewrite)
	r := NewReplacer(rs)

	tests := []struct {
		name        string
		cmd         Command
		wantOutcome Outcome
		wantCommand Command
	}{
		{
			name:        "no rule matched",
			cmd:         mustCommand(t, "/usr/bin/ld", "ld", "-o", "a.out"),
			wantOutcome: NoRuleMatched,
		},
		{
			name:        "matched without replacement keeps everything",
			cmd:         mustCommand(t, "/usr/bin/cc", "cc", "-c", "x.c"),
			wantOutcome: MatchedNoOp,
			wantCommand: mustCommand(t, "/usr/bin/cc", "cc", "-c", "x.c"),
		},
		{
			name:        "rewritten",
			cmd:         mustCommand(t, "/usr/bin/gcc", "gcc", "-c", "x.c"),
			wantOutcome: Rewritten,
			wantCommand: mustCommand(t, "clang", "clang", "-c", "x.c"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := r.Evaluate(tt.cmd)
			if res.Outcome != tt.wantOutcome {
				t.Fatalf("Evaluate().Outcome = %v, want %v", res.Outcome, tt.wantOutcome)
			}
			if diff := cmp.Diff(tt.wantCommand, res.Command); diff != "" {
				t.Errorf("Evaluate().Command mismatch (-want +got):\n%s", diff)
			}

			_, ok := r.Rewrite(tt.cmd)
			if wantOK := tt.wantOutcome != NoRuleMatched; ok != wantOK {
				t.Errorf("Rewrite() ok = %v, want %v", ok, wantOK)
			}
		})
	}
}

func TestReplacer_Evaluate_RemovalArity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		remove []string
		want   []string
	}{
		{
			name:   "arity one removes flag and value",
			args:   []string{"gcc", "-I", "inc", "a.c"},
			remove: []string{"-I"},
			want:   []string{"gcc", "a.c"},
		},
		{
			name:   "arity zero removes only the flag",
			args:   []string{"gcc", "-O2", "a.c"},
			remove: []string{"-O2"},
			want:   []string{"gcc", "a.c"},
		},
		{
			name:   "absent flag is a no-op",
			args:   []string{"gcc", "a.c"},
			remove: []string{"-O2"},
			want:   []string{"gcc", "a.c"},
		},
		{
			name:   "only the first occurrence goes",
			args:   []string{"gcc", "-O2", "a.c", "-O2"},
			remove: []string{"-O2"},
			want:   []string{"gcc", "a.c", "-O2"},
		},
		{
			name:   "value past the end is tolerated",
			args:   []string{"gcc", "a.c", "-o"},
			remove: []string{"-o"},
			want:   []string{"gcc", "a.c"},
		},
		{
			name:   "removals apply in order against the mutated list",
			args:   []string{"gcc", "-x", "-O2", "a.c", "-O2"},
			remove: []string{"-x", "-O2"},
			want:   []string{"gcc", "a.c"},
		},
		{
			name:   "unknown flag defaults to arity zero",
			args:   []string{"gcc", "-fmy-plugin", "keep", "a.c"},
			remove: []string{"-fmy-plugin"},
			want:   []string{"gcc", "keep", "a.c"},
		},
		{
			name:   "slot zero is never removed",
			args:   []string{"gcc", "a.c"},
			remove: []string{"gcc"},
			want:   []string{"gcc", "a.c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rs := mustRuleSet(t, Rule{Match: "gcc", Replace: "gcc", Remove: tt.remove})
			got, ok := NewReplacer(rs).Rewrite(mustCommand(t, "gcc", tt.args...))
			if !ok {
				t.Fatal("Rewrite() = false, want true")
			}
			if diff := cmp.Diff(tt.want, got.Args); diff != "" {
				t.Errorf("Rewrite().Args mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReplacer_Evaluate_StrictPolicy(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{Match: "gcc", Replace: "clang", Remove: []string{"-O2", "-fmy-plugin"}})
	original := mustCommand(t, "gcc", "gcc", "-O2", "-fmy-plugin", "a.c")

	strict := NewReplacer(rs, WithUnknownFlagPolicy(PolicyStrict))
	res := strict.Evaluate(original)
	if res.Outcome != RemovalRejected {
		t.Fatalf("Evaluate().Outcome = %v, want %v", res.Outcome, RemovalRejected)
	}
	if diff := cmp.Diff(original, res.Command); diff != "" {
		t.Errorf("rejected command should be the original (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-fmy-plugin"}, res.UnknownFlags); diff != "" {
		t.Errorf("UnknownFlags mismatch (-want +got):\n%s", diff)
	}
	if _, ok := strict.Rewrite(original); ok {
		t.Error("Rewrite() under strict policy = true, want false")
	}

	lenient := NewReplacer(rs).Evaluate(original)
	if lenient.Outcome != Rewritten {
		t.Fatalf("default policy Outcome = %v, want %v", lenient.Outcome, Rewritten)
	}
	if diff := cmp.Diff([]string{"clang", "a.c"}, lenient.Command.Args); diff != "" {
		t.Errorf("default policy Args mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"-fmy-plugin"}, lenient.UnknownFlags); diff != "" {
		t.Errorf("default policy UnknownFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestReplacer_Rewrite_RemovalSkipsSlotZero(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{Match: "gcc", Replace: "clang", Remove: []string{"gcc"}})
	original := mustCommand(t, "gcc", "gcc", "-c", "a.c")

	got, ok := NewReplacer(rs).Rewrite(original)
	if !ok {
		t.Fatal("Rewrite() = false, want true")
	}
	want := Command{Path: "clang", Args: []string{"clang", "-c", "a.c"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Rewrite() mismatch (-want +got):\n%s", diff)
	}
}

func TestReplacer_Rewrite_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{Match: "gcc", Replace: "/opt/bin/afl-gcc", Add: []string{"-g"}, Remove: []string{"-o"}})
	args := make([]string, 4, 16)
	copy(args, []string{"gcc", "a.c", "-o", "a.out"})
	original := Command{Path: "gcc", Args: args}
	before := original.Clone()

	got, ok := NewReplacer(rs).Rewrite(original)
	if !ok {
		t.Fatal("Rewrite() = false, want true")
	}
	if diff := cmp.Diff(before, original); diff != "" {
		t.Errorf("input mutated (-before +after):\n%s", diff)
	}
	if extra := args[:5]; extra[4] != "" {
		t.Errorf("spare capacity of the input was written: %q", extra[4])
	}
	if got.Args[0] != "afl-gcc" {
		t.Errorf("Args[0] = %q, want base name of the replacement", got.Args[0])
	}
}

func TestReplacer_Rewrite_AppendsAddArgumentsLast(t *testing.T) {
	t.Parallel()

	add := []string{"-g", "-O0", "-DFUZZING_BUILD_MODE_UNSAFE_FOR_PRODUCTION"}
	rs := mustRuleSet(t, Rule{Match: "clang", Replace: "clang", Add: add})

	got, ok := NewReplacer(rs).Rewrite(mustCommand(t, "clang", "clang", "-c", "a.c", "-o", "a.o"))
	if !ok {
		t.Fatal("Rewrite() = false, want true")
	}
	tail := got.Args[len(got.Args)-len(add):]
	if !slices.Equal(tail, add) {
		t.Errorf("last %d args = %q, want %q", len(add), tail, add)
	}
}

func TestReplacer_Rewrite_ReplaceOnlyKeepsPositions(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{Match: DefaultCXXPattern, Replace: "/usr/local/bin/afl-clang++"})
	original := mustCommand(t, "/usr/bin/g++", "g++", "-std=c++17", "-c", "x.cc", "-o", "x.o")

	got, ok := NewReplacer(rs).Rewrite(original)
	if !ok {
		t.Fatal("Rewrite() = false, want true")
	}
	if got.Path != "/usr/local/bin/afl-clang++" {
		t.Errorf("Path = %q", got.Path)
	}
	if diff := cmp.Diff(original.Args[1:], got.Args[1:]); diff != "" {
		t.Errorf("arguments after slot 0 moved (-want +got):\n%s", diff)
	}
	if got.Args[0] != "afl-clang++" {
		t.Errorf("Args[0] = %q, want %q", got.Args[0], "afl-clang++")
	}
}

func TestResolve_Failure(t *testing.T) {
	t.Parallel()

	_, err := Resolve(Command{Path: "afl-gcc", Args: []string{"afl-gcc"}}, fixedResolver{})
	if !errors.Is(err, ErrPathResolution) {
		t.Fatalf("Resolve() error = %v, want ErrPathResolution", err)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) || resErr.Command != "afl-gcc" {
		t.Errorf("Resolve() error = %#v, want ResolutionError for afl-gcc", err)
	}
}

func TestOutcome_TextRoundTrip(t *testing.T) {
	t.Parallel()

	for _, o := range []Outcome{NoRuleMatched, MatchedNoOp, Rewritten, RemovalRejected} {
		text, err := o.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) error = %v", o, err)
		}
		var got Outcome
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) error = %v", text, err)
		}
		if got != o {
			t.Errorf("round trip of %v = %v", o, got)
		}
	}

	var o Outcome
	if err := o.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) error = nil, want error")
	}
}
