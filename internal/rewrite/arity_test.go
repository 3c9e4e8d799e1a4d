// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"slices"
	"testing"
)

func TestArityOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flag      string
		wantArity Arity
		wantKnown bool
	}{
		{flag: "-o", wantArity: OneValue, wantKnown: true},
		{flag: "-I", wantArity: OneValue, wantKnown: true},
		{flag: "-isystem", wantArity: OneValue, wantKnown: true},
		{flag: "-Xlinker", wantArity: OneValue, wantKnown: true},
		{flag: "-MF", wantArity: OneValue, wantKnown: true},
		{flag: "-O2", wantArity: NoValue, wantKnown: true},
		{flag: "-O4", wantArity: NoValue, wantKnown: true},
		{flag: "-shared", wantArity: NoValue, wantKnown: true},
		{flag: "-fomit-frame-pointer", wantArity: NoValue, wantKnown: true},
		{flag: "-DFOO", wantArity: NoValue, wantKnown: false},
		{flag: "hello.c", wantArity: NoValue, wantKnown: false},
	}

	for _, tt := range tests {
		t.Run(tt.flag, func(t *testing.T) {
			t.Parallel()

			arity, known := ArityOf(tt.flag)
			if arity != tt.wantArity || known != tt.wantKnown {
				t.Errorf("ArityOf(%q) = (%d, %v), want (%d, %v)", tt.flag, arity, known, tt.wantArity, tt.wantKnown)
			}
			if got := ArityOrDefault(tt.flag); got != tt.wantArity {
				t.Errorf("ArityOrDefault(%q) = %d, want %d", tt.flag, got, tt.wantArity)
			}
		})
	}
}

func TestKnownFlags(t *testing.T) {
	t.Parallel()

	flags := KnownFlags()
	if len(flags) < 300 {
		t.Errorf("KnownFlags() has %d entries, want several hundred", len(flags))
	}
	if !slices.IsSorted(flags) {
		t.Error("KnownFlags() is not sorted")
	}
	for _, f := range flags {
		if a, _ := ArityOf(f); a != NoValue && a != OneValue {
			t.Errorf("%s has arity %d, want 0 or 1", f, a)
		}
	}
}
