// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"fmt"
	"slices"

	"github.com/buildhook/buildhook/internal/pathresolve"
)

const (
	// NoRuleMatched means no rule applies; run the original command.
	NoRuleMatched Outcome = iota
	// MatchedNoOp means a rule without a replacement matched; the original
	// command is returned unchanged and no argument edits were made.
	MatchedNoOp
	// Rewritten means the rule's edits were applied.
	Rewritten
	// RemovalRejected means a strict UnknownFlagPolicy refused a removal
	// flag with unknown arity. The original command is returned unchanged.
	RemovalRejected
)

// ErrPathResolution is the sentinel wrapped by ResolutionError.
var ErrPathResolution = errors.New("command could not be resolved to an executable path")

type (
	// Outcome classifies the result of evaluating one command.
	Outcome int

	// Result is the full outcome of evaluating one command.
	Result struct {
		Outcome Outcome
		// Rule is the matched rule. Zero when Outcome is NoRuleMatched.
		Rule Rule
		// Command is the rewritten command for Rewritten, a copy of the
		// original for MatchedNoOp and RemovalRejected, and zero otherwise.
		Command Command
		// UnknownFlags lists removal flags that had no arity entry.
		UnknownFlags []string
	}

	// Resolver turns a command name into a canonical absolute path.
	// *pathresolve.Resolver implements it.
	Resolver interface {
		ResolveAbsolute(command string) (string, bool)
	}

	// ResolutionError reports a command that could not be resolved.
	ResolutionError struct {
		Command string
	}

	// Replacer applies the first matching rule of a RuleSet to commands.
	// It holds no mutable state and is safe for concurrent use.
	Replacer struct {
		matcher *Matcher
		policy  UnknownFlagPolicy
	}

	// Option configures a Replacer.
	Option func(*Replacer)
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case NoRuleMatched:
		return "no-rule-matched"
	case MatchedNoOp:
		return "matched-no-op"
	case Rewritten:
		return "rewritten"
	case RemovalRejected:
		return "removal-rejected"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	for _, candidate := range []Outcome{NoRuleMatched, MatchedNoOp, Rewritten, RemovalRejected} {
		if candidate.String() == string(text) {
			*o = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, ErrPathResolution)
}

// Unwrap returns ErrPathResolution for errors.Is() compatibility.
func (e *ResolutionError) Unwrap() error { return ErrPathResolution }

// WithUnknownFlagPolicy sets how removal flags with unknown arity are
// handled. The default is PolicyDefaultZero.
func WithUnknownFlagPolicy(p UnknownFlagPolicy) Option {
	return func(r *Replacer) {
		r.policy = p
	}
}

// NewReplacer returns a Replacer over rules.
func NewReplacer(rules *RuleSet, opts ...Option) *Replacer {
	r := &Replacer{matcher: NewMatcher(rules), policy: PolicyDefaultZero}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Matcher returns the Matcher the Replacer selects rules with.
func (r *Replacer) Matcher() *Matcher {
	return r.matcher
}

// Rewrite returns the rewritten command and true when a rule matched, or
// false when no rule applies. A matching rule without a replacement returns
// the original command unchanged. Under PolicyStrict a rejected removal also
// returns false.
//
// The returned command's Path is the replacement as written in the rule; use
// Resolve before executing it.
func (r *Replacer) Rewrite(original Command) (Command, bool) {
	res := r.Evaluate(original)
	switch res.Outcome {
	case MatchedNoOp, Rewritten:
		return res.Command, true
	default:
		return Command{}, false
	}
}

// Evaluate is Rewrite with the full Result.
func (r *Replacer) Evaluate(original Command) Result {
	rule, ok := r.matcher.FindMatchingRule(original.Path)
	if !ok {
		return Result{Outcome: NoRuleMatched}
	}
	if rule.IsNoOp() {
		return Result{Outcome: MatchedNoOp, Rule: rule, Command: original.Clone()}
	}

	unknown := unknownFlags(rule.Remove)
	if len(unknown) > 0 && r.policy.IsStrict() {
		return Result{Outcome: RemovalRejected, Rule: rule, Command: original.Clone(), UnknownFlags: unknown}
	}

	args := original.Args
	if len(args) == 0 {
		args = []string{original.Path}
	}
	for _, flag := range rule.Remove {
		args = removeFirst(args, flag, ArityOrDefault(flag))
	}
	// Concat allocates, so original.Args is never written below.
	args = slices.Concat(args, rule.Add)
	args[0] = pathresolve.Basename(rule.Replace)

	return Result{
		Outcome:      Rewritten,
		Rule:         rule,
		Command:      Command{Path: rule.Replace, Args: args},
		UnknownFlags: unknown,
	}
}

// Resolve returns cmd with its Path replaced by the canonical absolute path
// of the executable. A nil resolver searches the process PATH. The argument
// vector, including slot 0, is left alone.
func Resolve(cmd Command, resolver Resolver) (Command, error) {
	if resolver == nil {
		resolver = pathresolve.New()
	}
	abs, ok := resolver.ResolveAbsolute(cmd.Path)
	if !ok {
		return Command{}, &ResolutionError{Command: cmd.Path}
	}
	out := cmd.Clone()
	out.Path = abs
	return out, nil
}

// removeFirst drops the first occurrence of flag after slot 0 together with
// the arity tokens that follow it. Value tokens past the end are ignored.
// A flag equal to argv[0] never removes slot 0.
// args is never modified; a new slice is returned when something is removed.
func removeFirst(args []string, flag string, arity Arity) []string {
	if len(args) < 2 {
		return args
	}
	i := slices.Index(args[1:], flag)
	if i < 0 {
		return args
	}
	start := i + 1
	end := min(start+1+int(arity), len(args))

	out := make([]string, 0, len(args)-(end-start))
	out = append(out, args[:start]...)
	return append(out, args[end:]...)
}

func unknownFlags(flags []string) []string {
	var unknown []string
	for _, f := range flags {
		if _, ok := ArityOf(f); !ok {
			unknown = append(unknown, f)
		}
	}
	return unknown
}
