// SPDX-License-Identifier: MPL-2.0

package compdb

import "path/filepath"

// DefaultOutput is the output a compiler driver writes without -o.
const DefaultOutput = "a.out"

// sourceSuffixes are the extensions a compiler driver treats as inputs to
// compile or assemble. Case matters: .C is C++, .c is C.
var sourceSuffixes = map[string]struct{}{
	".c":   {},
	".i":   {},
	".ii":  {},
	".m":   {},
	".mi":  {},
	".mm":  {},
	".mii": {},
	".C":   {},
	".cc":  {},
	".CC":  {},
	".cp":  {},
	".cpp": {},
	".cxx": {},
	".c++": {},
	".C++": {},
	".txx": {},
	".s":   {},
	".S":   {},
	".sx":  {},
	".asm": {},
}

// linkerFlags mark an invocation that links.
var linkerFlags = map[string]struct{}{
	"-static":   {},
	"-shared":   {},
	"-s":        {},
	"-rdynamic": {},
	"-l":        {},
	"-L":        {},
	"-u":        {},
	"-z":        {},
	"-T":        {},
	"-Xlinker":  {},
}

// CommandLine is what a compiler argument vector says about its files.
type CommandLine struct {
	Inputs []string
	Output string
	// Links is set when a linker flag appears.
	Links bool
}

// IsSourceFile reports whether name has a source file extension.
func IsSourceFile(name string) bool {
	_, ok := sourceSuffixes[filepath.Ext(name)]
	return ok
}

// ParseCommandLine scans args, skipping slot 0. The token after -o is the
// output and is never an input. Tokens starting with '-' are never inputs.
func ParseCommandLine(args []string) CommandLine {
	cl := CommandLine{Output: DefaultOutput}
	if len(args) < 2 {
		return cl
	}

	outputFollows := false
	for _, arg := range args[1:] {
		if outputFollows {
			outputFollows = false
			cl.Output = arg
			continue
		}
		if arg == "-o" {
			outputFollows = true
			continue
		}
		if _, ok := linkerFlags[arg]; ok {
			cl.Links = true
			continue
		}
		if len(arg) > 0 && arg[0] == '-' {
			continue
		}
		if IsSourceFile(arg) {
			cl.Inputs = append(cl.Inputs, arg)
		}
	}
	return cl
}
