// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"testing"
)

func TestNewRuleSet_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := NewRuleSet([]Rule{
		{Match: "gcc"},
		{Match: "clang(++"},
	})
	if !errors.Is(err, ErrInvalidPattern) {
		t.Fatalf("NewRuleSet() error = %v, want ErrInvalidPattern", err)
	}
	var patErr *InvalidPatternError
	if !errors.As(err, &patErr) {
		t.Fatalf("NewRuleSet() error type = %T, want *InvalidPatternError", err)
	}
	if patErr.Index != 1 || patErr.Pattern != "clang(++" {
		t.Errorf("InvalidPatternError = %+v, want index 1", patErr)
	}
}

func TestNewRuleSet_AnchorsAlternations(t *testing.T) {
	t.Parallel()

	// Without grouping, "^a|b$" would let "b" match as a suffix.
	rs := mustRuleSet(t, Rule{Match: "gcc|cc", Replace: "x"})
	m := NewMatcher(rs)
	for _, name := range []string{"gcc", "cc"} {
		if _, ok := m.FindMatchingRule(name); !ok {
			t.Errorf("%q should match", name)
		}
	}
	for _, name := range []string{"xgcc", "gccx", "icc"} {
		if _, ok := m.FindMatchingRule(name); ok {
			t.Errorf("%q should not match", name)
		}
	}
}

func TestRuleSet_RulesIsACopy(t *testing.T) {
	t.Parallel()

	rs := mustRuleSet(t, Rule{Match: "gcc", Replace: "clang", Add: []string{"-g"}})
	rules := rs.Rules()
	rules[0].Add[0] = "-O3"
	rules[0].Replace = "tcc"

	again := rs.Rules()
	if again[0].Add[0] != "-g" || again[0].Replace != "clang" {
		t.Errorf("RuleSet was mutated through Rules(): %+v", again[0])
	}
	if rs.Len() != 1 {
		t.Errorf("Len() = %d, want 1", rs.Len())
	}

	var nilSet *RuleSet
	if nilSet.Len() != 0 || nilSet.Rules() != nil {
		t.Error("nil RuleSet should be empty")
	}
}

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	if err := ValidatePattern(DefaultCCPattern); err != nil {
		t.Errorf("ValidatePattern(DefaultCCPattern) = %v", err)
	}
	if err := ValidatePattern("[a-"); err == nil {
		t.Error("ValidatePattern([a-) = nil, want error")
	}
}
