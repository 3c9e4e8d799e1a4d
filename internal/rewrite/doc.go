// SPDX-License-Identifier: MPL-2.0

// Package rewrite is the rule-matching and command-rewriting engine.
//
// A Command is one intercepted compiler invocation. A RuleSet holds ordered,
// pre-compiled MatchingRules; the Matcher picks the first rule whose pattern
// matches the invocation's base name in full, and the Replacer applies that
// rule's flag removals and additions to produce a new Command.
//
// Everything in this package is pure except Replacer.Resolve, which consults
// the file system and PATH through a Resolver. RuleSets, the arity table and
// the shared-library family table are immutable after construction and safe
// for concurrent use.
package rewrite
