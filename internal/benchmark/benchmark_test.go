// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"fmt"
	"testing"

	"github.com/buildhook/buildhook/internal/collector"
	"github.com/buildhook/buildhook/internal/compdb"
	"github.com/buildhook/buildhook/internal/config"
	"github.com/buildhook/buildhook/internal/rewrite"
)

const (
	// sampleRulesCUE is a representative rules file with a catch-all rule
	// after several specific ones.
	sampleRulesCUE = `
toolchain: {
	"cross-cc": {
		match:   "^arm-none-eabi-gcc$"
		replace: "arm-none-eabi-clang"
		remove_arguments: ["-mno-thumb-interwork"]
	}
	"cc": {
		match:   "DEFAULT_CC"
		replace: "clang"
		add_arguments: ["-fsanitize=fuzzer-no-link", "-g"]
		remove_arguments: ["-O2", "-O3", "-fomit-frame-pointer", "-MD"]
	}
	"cxx": {
		match:   "DEFAULT_CXX"
		replace: "clang++"
		add_arguments: ["-fsanitize=fuzzer-no-link", "-g"]
		remove_arguments: ["-O2", "-O3"]
	}
}
order: ["cross-cc", "cc", "cxx"]
`

	sampleRulesYAML = `toolchain:
  cross-cc:
    match: ^arm-none-eabi-gcc$
    replace: arm-none-eabi-clang
  cc:
    match: DEFAULT_CC
    replace: clang
    add_arguments: ["-fsanitize=fuzzer-no-link", "-g"]
    remove_arguments: ["-O2", "-O3", "-fomit-frame-pointer"]
`
)

// sampleArgv is a typical autotools compile line.
var sampleArgv = []string{
	"x86_64-linux-gnu-gcc", "-DHAVE_CONFIG_H", "-I.", "-I..", "-Wall", "-Wextra",
	"-O2", "-fomit-frame-pointer", "-MT", "lib/foo.lo", "-MD", "-MP", "-MF", "lib/.deps/foo.Tpo",
	"-c", "lib/foo.c", "-fPIC", "-DPIC", "-o", "lib/.libs/foo.o",
}

func mustRules(b *testing.B) *rewrite.RuleSet {
	b.Helper()
	rf, err := config.ParseRulesFile("rules.cue", []byte(sampleRulesCUE))
	if err != nil {
		b.Fatalf("ParseRulesFile failed: %v", err)
	}
	rules, err := rewrite.NewRuleSet(rf.Rules())
	if err != nil {
		b.Fatalf("NewRuleSet failed: %v", err)
	}
	return rules
}

// BenchmarkRulesParsingCUE benchmarks schema validation of a CUE rules file.
func BenchmarkRulesParsingCUE(b *testing.B) {
	data := []byte(sampleRulesCUE)

	b.ResetTimer()
	for b.Loop() {
		if _, err := config.ParseRulesFile("rules.cue", data); err != nil {
			b.Fatalf("ParseRulesFile failed: %v", err)
		}
	}
}

// BenchmarkRulesParsingYAML benchmarks a YAML rules file, which also keeps
// the written tool order.
func BenchmarkRulesParsingYAML(b *testing.B) {
	data := []byte(sampleRulesYAML)

	b.ResetTimer()
	for b.Loop() {
		if _, err := config.ParseRulesFile("rules.yaml", data); err != nil {
			b.Fatalf("ParseRulesFile failed: %v", err)
		}
	}
}

// BenchmarkEvaluate benchmarks rule selection and argument rewriting for
// one compiler call.
func BenchmarkEvaluate(b *testing.B) {
	replacer := rewrite.NewReplacer(mustRules(b))
	cmd, err := rewrite.CommandFromArgv(sampleArgv)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		if res := replacer.Evaluate(cmd); res.Outcome != rewrite.Rewritten {
			b.Fatalf("Outcome = %v", res.Outcome)
		}
	}
}

// BenchmarkEvaluateNoMatch benchmarks the pass-through path of a command
// no rule matches.
func BenchmarkEvaluateNoMatch(b *testing.B) {
	replacer := rewrite.NewReplacer(mustRules(b))
	cmd, err := rewrite.CommandFromArgv([]string{"ld", "-o", "app", "main.o"})
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		if res := replacer.Evaluate(cmd); res.Outcome != rewrite.NoRuleMatched {
			b.Fatalf("Outcome = %v", res.Outcome)
		}
	}
}

// BenchmarkCollectorRoundTrip benchmarks what a hook does against the
// collector: one settings fetch and one report.
func BenchmarkCollectorRoundTrip(b *testing.B) {
	srv, err := collector.New(mustRules(b))
	if err != nil {
		b.Fatalf("collector.New failed: %v", err)
	}
	if err := srv.Start(b.Context()); err != nil {
		b.Fatalf("Start failed: %v", err)
	}
	b.Cleanup(func() { _ = srv.Stop() })

	client := collector.NewClient(srv.URL(), srv.Token())
	cmd, err := rewrite.CommandFromArgv(sampleArgv)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for b.Loop() {
		settings, err := client.FetchSettings(b.Context())
		if err != nil {
			b.Fatalf("FetchSettings failed: %v", err)
		}
		replacer, err := settings.Replacer()
		if err != nil {
			b.Fatalf("Replacer failed: %v", err)
		}
		res := replacer.Evaluate(cmd)
		if _, err := client.Report(b.Context(), collector.NewReport(cmd, res, "/src")); err != nil {
			b.Fatalf("Report failed: %v", err)
		}
	}
}

// BenchmarkCompilationDB benchmarks building a database from the reports
// of a mid-sized build with some files compiled twice.
func BenchmarkCompilationDB(b *testing.B) {
	replacer := rewrite.NewReplacer(mustRules(b))

	reports := make([]collector.Report, 0, 600)
	for i := range cap(reports) {
		file := fmt.Sprintf("src/file%d.c", i%500)
		cmd, err := rewrite.CommandFromArgv([]string{"gcc", "-O2", "-c", file, "-o", file + ".o"})
		if err != nil {
			b.Fatal(err)
		}
		r := collector.NewReport(cmd, replacer.Evaluate(cmd), "/src")
		r.ID = fmt.Sprintf("r%d", i)
		reports = append(reports, r)
	}

	b.ResetTimer()
	for b.Loop() {
		entries, err := compdb.FromReports(reports)
		if err != nil {
			b.Fatalf("FromReports failed: %v", err)
		}
		if len(entries) != 500 {
			b.Fatalf("entries = %d, want 500", len(entries))
		}
	}
}
