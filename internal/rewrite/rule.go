// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

const (
	// DefaultCCPattern matches C compiler driver names: gcc and clang with
	// optional target prefixes and version suffixes, cc, icc, xlc and gxlc.
	DefaultCCPattern = `^([^-]*-)*[mg]cc(-\d+(\.\d+){0,2})?$|` +
		`^([^-]*-)*clang(-\d+(\.\d+){0,2})?$|` +
		`^(|i)cc$|^(g|)xlc$`

	// DefaultCXXPattern matches C++ compiler driver names. cc, icc, xlc and
	// gxlc are matched here too, since they drive both languages.
	DefaultCXXPattern = `^([^-]*-)*[cmg]\+\+(-\d+(\.\d+){0,2})?$|` +
		`^([^-]*-)*clang\+\+(-\d+(\.\d+){0,2})?$|` +
		`^(|i)cc$|^(g|)xlc$`
)

// ErrInvalidPattern is the sentinel wrapped by InvalidPatternError.
var ErrInvalidPattern = errors.New("invalid match pattern")

type (
	// Rule is one declarative rewrite rule. It is also the wire form served
	// to exec hooks, so its fields carry the transport names.
	Rule struct {
		// Match is a regular expression that must match a command's base
		// name in full.
		Match string `json:"match_command" yaml:"match" toml:"match" mapstructure:"match_command"`
		// Replace is the replacement command. Empty means the rule only
		// classifies: a match returns the original command untouched.
		Replace string `json:"replace_command" yaml:"replace" toml:"replace" mapstructure:"replace_command"`
		// Add is appended verbatim to the argument vector.
		Add []string `json:"add_arguments" yaml:"add_arguments" toml:"add_arguments" mapstructure:"add_arguments"`
		// Remove lists flags whose first occurrence (plus its value tokens)
		// is stripped, in order.
		Remove []string `json:"remove_arguments" yaml:"remove_arguments" toml:"remove_arguments" mapstructure:"remove_arguments"`
	}

	// RuleSet is an ordered, immutable list of rules with their patterns
	// compiled. Construct it with NewRuleSet.
	RuleSet struct {
		rules []compiledRule
	}

	compiledRule struct {
		rule    Rule
		pattern *regexp.Regexp
	}

	// InvalidPatternError reports a rule whose pattern does not compile.
	InvalidPatternError struct {
		Index   int
		Pattern string
		Err     error
	}
)

// Error implements the error interface.
func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("rule %d: invalid match pattern %q: %v", e.Index, e.Pattern, e.Err)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// NewRuleSet compiles rules in order. Patterns are anchored at both ends so
// that they only ever match a whole base name. The first malformed pattern
// aborts construction.
func NewRuleSet(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		re, err := compileFullMatch(r.Match)
		if err != nil {
			return nil, &InvalidPatternError{Index: i, Pattern: r.Match, Err: err}
		}
		rs.rules = append(rs.rules, compiledRule{rule: r.clone(), pattern: re})
	}
	return rs, nil
}

// ValidatePattern reports whether pattern would be accepted by NewRuleSet.
func ValidatePattern(pattern string) error {
	_, err := compileFullMatch(pattern)
	return err
}

func compileFullMatch(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Rules returns a copy of the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil {
		return nil
	}
	out := make([]Rule, len(rs.rules))
	for i, cr := range rs.rules {
		out[i] = cr.rule.clone()
	}
	return out
}

// first returns the first rule whose pattern matches name in full.
func (rs *RuleSet) first(name string) (Rule, bool) {
	if rs == nil {
		return Rule{}, false
	}
	for _, cr := range rs.rules {
		if cr.pattern.MatchString(name) {
			return cr.rule.clone(), true
		}
	}
	return Rule{}, false
}

// IsNoOp reports whether the rule matches without requesting any edit.
func (r Rule) IsNoOp() bool {
	return r.Replace == ""
}

func (r Rule) clone() Rule {
	return Rule{
		Match:   r.Match,
		Replace: r.Replace,
		Add:     slices.Clone(r.Add),
		Remove:  slices.Clone(r.Remove),
	}
}
