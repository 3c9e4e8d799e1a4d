// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/buildhook/buildhook/internal/rewrite"
)

const (
	// DefaultCompilationDBPath is where compile_commands.json is written.
	DefaultCompilationDBPath = "compile_commands.json"
	// DefaultSettingsTimeout bounds a hook's settings fetch.
	DefaultSettingsTimeout = 200 * time.Millisecond
)

type (
	// Preset is the compiler substitution and flag edits of one fuzzer.
	Preset struct {
		ReplaceCC  string
		ReplaceCXX string
		Add        []string
		Remove     []string
		Sanitizers map[Sanitizer]SanitizerEdit
	}

	// SanitizerEdit is what selecting a sanitizer adds to a preset: extra
	// compiler flags, or environment changes for wrappers that pick the
	// sanitizer from the environment.
	SanitizerEdit struct {
		Add []string
		Env EnvEdit
	}

	// EnvEdit lists environment variables to set and unset for the build.
	EnvEdit struct {
		Set   map[string]string
		Unset []string
	}

	// Interception is the resolved rule setup for one build.
	Interception struct {
		Rules []rewrite.Rule
		// Names holds one tool name per rule.
		Names  []string
		Policy rewrite.UnknownFlagPolicy
		// Env is applied to the build's environment, never to buildhook's own.
		Env EnvEdit
		// Source describes where the rules came from, for display.
		Source string
	}
)

// fuzzingCommon is appended to every preset's lists.
var fuzzingCommon = Preset{
	Remove: []string{"-O1", "-O2", "-O3", "-O4", "-Ofast", "-Os", "-Oz", "-Og"},
	Add:    []string{"-g", "-gline-tables-only", "-DFUZZING_BUILD_MODE_UNSAFE_FOR_PRODUCTION"},
}

var presets = map[Fuzzer]Preset{
	FuzzerLibFuzzer: {
		ReplaceCC:  "clang",
		ReplaceCXX: "clang++",
		Remove:     []string{"-fomit-frame-pointer"},
		Add:        []string{"-fno-omit-frame-pointer", "-fsanitize=fuzzer-no-link", "-Og"},
		Sanitizers: map[Sanitizer]SanitizerEdit{
			SanitizerAddress: {Add: []string{"-fsanitize=address,undefined", "-fsanitize-address-use-after-scope"}},
			SanitizerMemory:  {Add: []string{"-fsanitize=memory,undefined"}},
			SanitizerThread:  {Add: []string{"-fsanitize=thread,undefined"}},
		},
	},
	FuzzerAFL: {
		ReplaceCC:  "afl-clang",
		ReplaceCXX: "afl-clang++",
		Add:        []string{"-O0"},
		Sanitizers: map[Sanitizer]SanitizerEdit{
			SanitizerAddress: {Env: EnvEdit{Set: map[string]string{"AFL_USE_ASAN": "1"}, Unset: []string{"AFL_USE_MSAN"}}},
			SanitizerMemory:  {Env: EnvEdit{Set: map[string]string{"AFL_USE_MSAN": "1"}, Unset: []string{"AFL_USE_ASAN"}}},
			SanitizerThread:  {Env: EnvEdit{Unset: []string{"AFL_USE_MSAN", "AFL_USE_ASAN"}}},
		},
	},
	FuzzerLLVMCov: {
		ReplaceCC:  "clang",
		ReplaceCXX: "clang++",
		Remove:     []string{"-fomit-frame-pointer"},
		Add:        []string{"-fno-omit-frame-pointer", "-fprofile-instr-generate", "-fcoverage-mapping", "-O0"},
	},
}

// Fuzzers returns the preset names in a stable order.
func Fuzzers() []Fuzzer {
	return []Fuzzer{FuzzerLibFuzzer, FuzzerAFL, FuzzerLLVMCov}
}

// LookupPreset returns the preset for f with the common fuzzing edits
// appended to its lists.
func LookupPreset(f Fuzzer) (Preset, bool) {
	p, ok := presets[f]
	if !ok {
		return Preset{}, false
	}
	return Preset{
		ReplaceCC:  p.ReplaceCC,
		ReplaceCXX: p.ReplaceCXX,
		Add:        slices.Concat(p.Add, fuzzingCommon.Add),
		Remove:     slices.Concat(p.Remove, fuzzingCommon.Remove),
		Sanitizers: p.Sanitizers,
	}, true
}

// BuildInterception turns cfg into the rules served to exec hooks.
//
// A rules file wins over everything else. Otherwise the result is a cc rule
// and a cxx rule sharing one argument edit list: the fuzzer preset's (with
// its sanitizer) followed by the configured add/remove arguments. Unknown
// fuzzer and sanitizer names are logged and ignored.
func BuildInterception(cfg *Config) (*Interception, error) {
	policy := cfg.UnknownFlagPolicy
	if policy == "" {
		policy = rewrite.PolicyDefaultZero
	}

	if cfg.RulesFile != "" {
		rf, err := LoadRulesFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		if cfg.Fuzzer != FuzzerNone {
			slog.Warn("rules file set, ignoring fuzzer preset", "fuzzer", cfg.Fuzzer, "rules_file", cfg.RulesFile)
		}
		names := make([]string, len(rf.Tools))
		for i, t := range rf.Tools {
			names[i] = t.Name
		}
		return &Interception{Rules: rf.Rules(), Names: names, Policy: policy, Source: "rules file " + cfg.RulesFile}, nil
	}

	replaceCC, replaceCXX := cfg.ReplaceCC, cfg.ReplaceCXX
	source := "defaults"
	var (
		add    []string
		remove []string
		env    EnvEdit
	)

	if preset, ok := LookupPreset(cfg.Fuzzer); ok {
		replaceCC, replaceCXX = preset.ReplaceCC, preset.ReplaceCXX
		add, remove = preset.Add, preset.Remove
		source = "fuzzer " + cfg.Fuzzer.String()

		if cfg.Sanitizer != SanitizerNone {
			if edit, ok := preset.Sanitizers[cfg.Sanitizer]; ok {
				add = slices.Concat(add, edit.Add)
				env = edit.Env
				source += " with " + cfg.Sanitizer.String() + " sanitizer"
			} else {
				slog.Warn("ignoring unknown sanitizer", "sanitizer", cfg.Sanitizer, "fuzzer", cfg.Fuzzer)
			}
		}
	} else if cfg.Fuzzer != FuzzerNone {
		slog.Warn("ignoring unknown fuzzer", "fuzzer", cfg.Fuzzer)
	}

	add = slices.Concat(add, cfg.AddArguments)
	remove = slices.Concat(remove, cfg.RemoveArguments)

	rules := []rewrite.Rule{
		{Match: cfg.MatchCC, Replace: replaceCC, Add: add, Remove: remove},
		{Match: cfg.MatchCXX, Replace: replaceCXX, Add: slices.Clone(add), Remove: slices.Clone(remove)},
	}
	return &Interception{Rules: rules, Names: []string{"cc", "cxx"}, Policy: policy, Env: env, Source: source}, nil
}

// RuleSet compiles the interception rules.
func (i *Interception) RuleSet() (*rewrite.RuleSet, error) {
	return rewrite.NewRuleSet(i.Rules)
}

// Tools returns the rules as named rules file tools.
func (i *Interception) Tools() []Tool {
	tools := make([]Tool, len(i.Rules))
	for n, r := range i.Rules {
		name := fmt.Sprintf("rule-%d", n+1)
		if n < len(i.Names) && i.Names[n] != "" {
			name = i.Names[n]
		}
		tools[n] = Tool{
			Name:    name,
			Match:   r.Match,
			Replace: r.Replace,
			Add:     slices.Clone(r.Add),
			Remove:  slices.Clone(r.Remove),
		}
	}
	return tools
}

// IsZero reports whether e changes nothing.
func (e EnvEdit) IsZero() bool {
	return len(e.Set) == 0 && len(e.Unset) == 0
}

// Apply returns environ (KEY=VALUE entries) with e applied. Unset wins over
// an inherited value; Set wins over both. The input is not modified.
func (e EnvEdit) Apply(environ []string) []string {
	out := make([]string, 0, len(environ)+len(e.Set))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if slices.Contains(e.Unset, key) {
			continue
		}
		if _, overridden := e.Set[key]; overridden {
			continue
		}
		out = append(out, kv)
	}

	keys := make([]string, 0, len(e.Set))
	for k := range e.Set {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+e.Set[k])
	}
	return out
}
