// SPDX-License-Identifier: MPL-2.0

// Package benchmark holds benchmarks for the paths every intercepted
// compiler call goes through:
//   - rules file parsing and schema validation
//   - rule matching and argument rewriting
//   - the collector's settings and report round trip
//   - compilation database assembly
//
// Run them with:
//
//	go test -run '^$' -bench . -benchmem ./internal/benchmark
package benchmark
