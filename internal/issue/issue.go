// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

const (
	CompilerNotFoundId Id = iota + 1
	ConfigLoadFailedId
	RulesFileInvalidId
	InvalidRulePatternId
	CollectorUnreachableId
	BuildFailedId
	ShimDirFailedId
	PermissionDeniedId
)

type (
	// Id identifies a catalog issue.
	Id int

	// MarkdownMsg is the Markdown body of an issue.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry with guidance for one kind of failure.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

// Id returns the issue identifier.
func (i *Issue) Id() Id {
	return i.id
}

// MarkdownMsg returns the unrendered body.
func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

// ExtLinks returns a copy of the external links.
func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue body and its links with the glamour style at
// stylePath ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))

	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, links := range [][]HttpLink{i.docLinks, i.extLinks} {
			for _, link := range links {
				md.WriteString("- <" + string(link) + ">\n")
			}
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	compilerNotFoundIssue = &Issue{
		id: CompilerNotFoundId,
		mdMsg: `
# Compiler not found

A rule rewrote a compiler invocation, but the replacement compiler could not be
found. The build step was stopped instead of running a different compiler.

## Things you can try
- Check that the replacement is installed and on your PATH:
~~~
$ command -v afl-clang
~~~
- Use an absolute path in ` + "`replace_cc`" + ` / ` + "`replace_cxx`" + ` or in the rules file.
- Preview what would run:
~~~
$ buildhook rewrite --resolve -- gcc -c hello.c
~~~`,
		extLinks: []HttpLink{"https://pubs.opengroup.org/onlinepubs/9799919799/utilities/V3_chap02.html#tag_19_09_01_01"},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration

The configuration file, an environment variable or a flag holds a value
buildhook does not accept.

## Things you can try
- Show where configuration is read from:
~~~
$ buildhook config path
~~~
- Compare with the defaults:
~~~
$ buildhook config dump
~~~
- Look for stray ` + "`BUILDHOOK_*`" + `, ` + "`CC`" + ` or ` + "`CXX`" + ` variables in your environment.`,
		docLinks: []HttpLink{"https://cuelang.org/docs/tour/"},
	}

	rulesFileInvalidIssue = &Issue{
		id: RulesFileInvalidId,
		mdMsg: `
# Invalid rules file

The toolchain rules file does not match the expected layout.

## Expected layout
~~~yaml
toolchain:
  afl-cc:
    match: DEFAULT_CC
    replace: afl-clang
    add_arguments: [-O0]
    remove_arguments: [-O2]
~~~

## Things you can try
- Validate the file on its own:
~~~
$ buildhook rules check rules.yaml
~~~
- Use one of the extensions .cue, .json, .yaml, .yml or .toml.`,
	}

	invalidRulePatternIssue = &Issue{
		id: InvalidRulePatternId,
		mdMsg: `
# Invalid match pattern

A rule's ` + "`match`" + ` value is not a valid regular expression. Patterns use
RE2 syntax and must match a compiler's base name in full.

## Things you can try
- Use ` + "`DEFAULT_CC`" + ` or ` + "`DEFAULT_CXX`" + ` for the built-in patterns.
- Escape literal plus signs: ` + "`clang\\+\\+`" + `.`,
		extLinks: []HttpLink{"https://github.com/google/re2/wiki/Syntax"},
	}

	collectorUnreachableIssue = &Issue{
		id: CollectorUnreachableId,
		mdMsg: `
# Collector unreachable

An intercepted compiler could not reach the buildhook collector, so it ran
unmodified.

## Things you can try
- Run the build through ` + "`buildhook run`" + `, which starts the collector.
- Raise ` + "`collector.settings_timeout`" + ` on heavily loaded machines.`,
	}

	buildFailedIssue = &Issue{
		id: BuildFailedId,
		mdMsg: `
# Build failed

The build command exited with a non-zero status. buildhook passes the status
through unchanged.

## Things you can try
- Run with ` + "`--verbose`" + ` to log every intercepted compiler call.
- Check whether the failure comes from a rewritten invocation:
~~~
$ buildhook rewrite -- <the failing compiler command>
~~~`,
	}

	shimDirFailedIssue = &Issue{
		id: ShimDirFailedId,
		mdMsg: `
# Could not prepare compiler shims

buildhook intercepts compilers through a temporary directory of links placed
first on PATH. Creating it failed.

## Things you can try
- Check that ` + "`$TMPDIR`" + ` exists and is writable.
- Check that the filesystem supports symbolic links.`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied

A file buildhook needs could not be read, written or executed.

## Things you can try
- Check the permissions of the file named above.
- Make sure replacement compilers are executable (` + "`chmod +x`" + `).`,
	}

	issues = map[Id]*Issue{
		compilerNotFoundIssue.Id():     compilerNotFoundIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		rulesFileInvalidIssue.Id():     rulesFileInvalidIssue,
		invalidRulePatternIssue.Id():   invalidRulePatternIssue,
		collectorUnreachableIssue.Id(): collectorUnreachableIssue,
		buildFailedIssue.Id():          buildFailedIssue,
		shimDirFailedIssue.Id():        shimDirFailedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every catalog issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, iss := range issues {
		out = append(out, iss)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

// Get returns the issue for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}
