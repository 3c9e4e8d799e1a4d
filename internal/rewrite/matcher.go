// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"regexp"
	"slices"

	"github.com/buildhook/buildhook/internal/pathresolve"
)

// libraryFamily ties a compiler family to the flags that mark a
// shared-library link for that family.
type libraryFamily struct {
	name       string
	pattern    *regexp.Regexp
	indicators []string
}

// sharedLibraryFamilies covers the C drivers only. C++ drivers (g++,
// clang++) do not match either family.
var sharedLibraryFamilies = []libraryFamily{
	{
		name:       "gcc",
		pattern:    regexp.MustCompile(`^(?:([^-]*-)*[mg]cc(-\d+(\.\d+){0,2})?)$`),
		indicators: []string{"-s", "-rdynamic", "-shared"},
	},
	{
		name:       "clang",
		pattern:    regexp.MustCompile(`^(?:([^-]*-)*clang(-\d+(\.\d+){0,2})?)$`),
		indicators: []string{"-shared"},
	},
}

// Matcher selects rules for commands and classifies invocations.
type Matcher struct {
	rules *RuleSet
}

// NewMatcher returns a Matcher over rules. A nil RuleSet matches nothing.
func NewMatcher(rules *RuleSet) *Matcher {
	return &Matcher{rules: rules}
}

// FindMatchingRule returns the first rule whose pattern matches the base name
// of command in full.
func (m *Matcher) FindMatchingRule(command string) (Rule, bool) {
	return m.rules.first(pathresolve.Basename(command))
}

// IsSharedLibraryBuild reports whether cmd looks like a shared-library link.
// See IsSharedLibraryBuild.
func (m *Matcher) IsSharedLibraryBuild(cmd Command) bool {
	return IsSharedLibraryBuild(cmd)
}

// IsSharedLibraryBuild reports whether cmd belongs to a known compiler family
// and carries one of that family's shared-library flags anywhere in its
// arguments.
//
// This over-approximates: a flag token counts even where it is really the
// value of another flag (for example "-Xlinker -shared" or "-o -s").
func IsSharedLibraryBuild(cmd Command) bool {
	name := cmd.Name()
	for _, family := range sharedLibraryFamilies {
		if !family.pattern.MatchString(name) {
			continue
		}
		for _, flag := range family.indicators {
			if slices.Contains(cmd.Args, flag) {
				return true
			}
		}
	}
	return false
}

// CompilerFamily returns the shared-library family name ("gcc" or "clang")
// of a command base name.
func CompilerFamily(name string) (string, bool) {
	f, ok := compilerFamily(name)
	return f.name, ok
}

func compilerFamily(name string) (libraryFamily, bool) {
	for _, f := range sharedLibraryFamilies {
		if f.pattern.MatchString(name) {
			return f, true
		}
	}
	return libraryFamily{}, false
}
