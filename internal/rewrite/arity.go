// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"maps"
	"slices"
)

const (
	// NoValue marks a flag that stands alone.
	NoValue Arity = 0
	// OneValue marks a flag whose value is the next token.
	OneValue Arity = 1
)

// Arity is the number of tokens that immediately follow a flag as its value.
type Arity int

// arityTable maps well-known compiler driver and linker flags to their
// arity. Flags with attached values (-DFOO, -std=c11, -Wl,...) only appear
// here in spellings that are removed as a single token.
//
// The table is never written after package initialization.
var arityTable = map[string]Arity{
	// Driver modes and output.
	"-":                       NoValue,
	"-o":                      OneValue,
	"-c":                      NoValue,
	"-E":                      NoValue,
	"-S":                      NoValue,
	"-v":                      NoValue,
	"--verbose":               NoValue,
	"--version":               NoValue,
	"-###":                    NoValue,
	"-pipe":                   NoValue,
	"-save-temps":             NoValue,
	"-time":                   NoValue,
	"-Q":                      NoValue,
	"-Qn":                     NoValue,
	"-Qy":                     NoValue,
	"-Qunused-arguments":      NoValue,
	"-no-canonical-prefixes":  NoValue,
	"-emit-llvm":              NoValue,
	"-integrated-as":          NoValue,
	"-no-integrated-as":       NoValue,
	"-fintegrated-as":         NoValue,
	"-fno-integrated-as":      NoValue,
	"-fsyntax-only":           NoValue,
	"-pthread":                NoValue,
	"--param":                 OneValue,
	"-aux-info":               OneValue,
	"-dumpbase":               OneValue,
	"-dumpdir":                OneValue,
	"-wrapper":                OneValue,
	"-x":                      OneValue,
	"-ccc-gcc-name":           OneValue,
	"-working-directory":      OneValue,
	"-resource-dir":           OneValue,
	"-gcc-toolchain":          OneValue,
	"--serialize-diagnostics": OneValue,
	"-serialize-diagnostics":  OneValue,
	"-ivfsoverlay":            OneValue,
	"-index-store-path":       OneValue,
	"-mllvm":                  OneValue,
	"-mthread-model":          OneValue,
	"-target":                 OneValue,
	"-arch":                   OneValue,
	"--sysroot":               OneValue,
	"/dev/null":               NoValue,
	"--64":                    NoValue,

	// Informational queries.
	"-print-search-dirs":        NoValue,
	"-print-multi-directory":    NoValue,
	"-print-multi-lib":          NoValue,
	"-print-multi-os-directory": NoValue,
	"-print-libgcc-file-name":   NoValue,
	"-print-sysroot":            NoValue,
	"-print-resource-dir":       NoValue,
	"-print-target-triple":      NoValue,
	"-print-effective-triple":   NoValue,
	"-dumpversion":              NoValue,
	"-dumpfullversion":          NoValue,
	"-dumpmachine":              NoValue,
	"-dumpspecs":                NoValue,

	// Warnings and diagnostics.
	"-w":                                NoValue,
	"-W":                                NoValue,
	"-Wall":                             NoValue,
	"-Wextra":                           NoValue,
	"-Werror":                           NoValue,
	"-Wno-error":                        NoValue,
	"-Wpedantic":                        NoValue,
	"-Wshadow":                          NoValue,
	"-Wconversion":                      NoValue,
	"-Wformat":                          NoValue,
	"-Wformat-security":                 NoValue,
	"-Wno-unused-parameter":             NoValue,
	"-Wno-unused-command-line-argument": NoValue,
	"-Wno-unknown-warning-option":       NoValue,
	"-Wno-deprecated-declarations":      NoValue,
	"-pedantic":                         NoValue,
	"-pedantic-errors":                  NoValue,
	"-fcolor-diagnostics":               NoValue,
	"-fno-color-diagnostics":            NoValue,
	"-fdiagnostics-color":               NoValue,
	"-fno-diagnostics-color":            NoValue,
	"-fdiagnostics-show-option":         NoValue,
	"-fno-caret-diagnostics":            NoValue,
	"-fno-diagnostics-show-caret":       NoValue,
	"-fno-spell-checking":               NoValue,
	"-fmessage-length=0":                NoValue,
	"-fno-show-column":                  NoValue,

	// Language dialect.
	"-ansi":                   NoValue,
	"-std=c89":                NoValue,
	"-std=c99":                NoValue,
	"-std=c11":                NoValue,
	"-std=c17":                NoValue,
	"-std=gnu89":              NoValue,
	"-std=gnu99":              NoValue,
	"-std=gnu11":              NoValue,
	"-std=gnu17":              NoValue,
	"-std=c++98":              NoValue,
	"-std=c++11":              NoValue,
	"-std=c++14":              NoValue,
	"-std=c++17":              NoValue,
	"-std=c++20":              NoValue,
	"-std=gnu++11":            NoValue,
	"-std=gnu++14":            NoValue,
	"-std=gnu++17":            NoValue,
	"-trigraphs":              NoValue,
	"-traditional":            NoValue,
	"-traditional-cpp":        NoValue,
	"-fpermissive":            NoValue,
	"-fms-extensions":         NoValue,
	"-fno-ms-extensions":      NoValue,
	"-fdeclspec":              NoValue,
	"-fno-declspec":           NoValue,
	"-fgnu89-inline":          NoValue,
	"-fno-gnu89-inline":       NoValue,
	"-fno-operator-names":     NoValue,
	"-fshort-wchar":           NoValue,
	"-fsigned-char":           NoValue,
	"-funsigned-char":         NoValue,
	"-fshort-enums":           NoValue,
	"-fno-short-enums":        NoValue,
	"-fpascal-strings":        NoValue,
	"-fblocks":                NoValue,
	"-fno-blocks":             NoValue,
	"-fobjc-arc":              NoValue,
	"-fno-objc-arc":           NoValue,
	"-fmodules":               NoValue,
	"-fno-modules":            NoValue,
	"-fcxx-modules":           NoValue,
	"-fexceptions":            NoValue,
	"-fno-exceptions":         NoValue,
	"-fcxx-exceptions":        NoValue,
	"-fno-cxx-exceptions":     NoValue,
	"-frtti":                  NoValue,
	"-fno-rtti":               NoValue,
	"-fthreadsafe-statics":    NoValue,
	"-fno-threadsafe-statics": NoValue,
	"-fno-elide-constructors": NoValue,
	"-fopenmp":                NoValue,
	"-fno-openmp":             NoValue,

	// Preprocessor.
	"-A":     OneValue,
	"-D":     OneValue,
	"-U":     OneValue,
	"-C":     NoValue,
	"-CC":    NoValue,
	"-P":     NoValue,
	"-H":     NoValue,
	"-dM":    NoValue,
	"-dD":    NoValue,
	"-dN":    NoValue,
	"-dI":    NoValue,
	"-dU":    NoValue,
	"-undef": NoValue,
	"-remap": NoValue,

	// Dependency generation.
	"-M":                     NoValue,
	"-MM":                    NoValue,
	"-MF":                    OneValue,
	"-MG":                    NoValue,
	"-MP":                    NoValue,
	"-MT":                    OneValue,
	"-MQ":                    OneValue,
	"-MD":                    NoValue,
	"-MMD":                   NoValue,
	"-MJ":                    OneValue,
	"-dependency-file":       OneValue,
	"-dependency-dot":        OneValue,
	"-module-dependency-dir": OneValue,

	// Include search.
	"-I":                 OneValue,
	"-F":                 OneValue,
	"-idirafter":         OneValue,
	"-include":           OneValue,
	"-include-pch":       OneValue,
	"-imacros":           OneValue,
	"-iprefix":           OneValue,
	"-iwithprefix":       OneValue,
	"-iwithprefixbefore": OneValue,
	"-iwithsysroot":      OneValue,
	"-isystem":           OneValue,
	"-isystem-after":     OneValue,
	"-isysroot":          OneValue,
	"-iquote":            OneValue,
	"-imultilib":         OneValue,
	"-iframework":        OneValue,
	"-cxx-isystem":       OneValue,
	"-nostdinc":          NoValue,
	"-nostdinc++":        NoValue,
	"-nostdlibinc":       NoValue,
	"-nobuiltininc":      NoValue,

	// Debug information.
	"-g":                                NoValue,
	"-g0":                               NoValue,
	"-g1":                               NoValue,
	"-g2":                               NoValue,
	"-g3":                               NoValue,
	"-ggdb":                             NoValue,
	"-ggdb0":                            NoValue,
	"-ggdb1":                            NoValue,
	"-ggdb2":                            NoValue,
	"-ggdb3":                            NoValue,
	"-gdwarf":                           NoValue,
	"-gdwarf-2":                         NoValue,
	"-gdwarf-3":                         NoValue,
	"-gdwarf-4":                         NoValue,
	"-gdwarf-5":                         NoValue,
	"-gline-tables-only":                NoValue,
	"-gline-directives-only":            NoValue,
	"-gmlt":                             NoValue,
	"-gsplit-dwarf":                     NoValue,
	"-gz":                               NoValue,
	"-gcolumn-info":                     NoValue,
	"-gno-column-info":                  NoValue,
	"-gstrict-dwarf":                    NoValue,
	"-gno-strict-dwarf":                 NoValue,
	"-gcodeview":                        NoValue,
	"-gfull":                            NoValue,
	"-gused":                            NoValue,
	"-fdebug-types-section":             NoValue,
	"-fstandalone-debug":                NoValue,
	"-fno-standalone-debug":             NoValue,
	"-flimit-debug-info":                NoValue,
	"-fno-limit-debug-info":             NoValue,
	"-fno-eliminate-unused-debug-types": NoValue,
	"-fno-var-tracking":                 NoValue,
	"-fno-var-tracking-assignments":     NoValue,
	"-fno-dwarf2-cfi-asm":               NoValue,
	"-p":                                NoValue,
	"-pg":                               NoValue,

	// Optimization.
	"-O":                              NoValue,
	"-O0":                             NoValue,
	"-O1":                             NoValue,
	"-O2":                             NoValue,
	"-O3":                             NoValue,
	"-O4":                             NoValue,
	"-Os":                             NoValue,
	"-Oz":                             NoValue,
	"-Ofast":                          NoValue,
	"-Og":                             NoValue,
	"-ffast-math":                     NoValue,
	"-fno-fast-math":                  NoValue,
	"-fno-math-errno":                 NoValue,
	"-fno-trapping-math":              NoValue,
	"-fno-signed-zeros":               NoValue,
	"-ffinite-math-only":              NoValue,
	"-fno-finite-math-only":           NoValue,
	"-fno-rounding-math":              NoValue,
	"-funroll-loops":                  NoValue,
	"-fno-unroll-loops":               NoValue,
	"-finline-functions":              NoValue,
	"-fno-inline":                     NoValue,
	"-fno-inline-functions":           NoValue,
	"-fkeep-inline-functions":         NoValue,
	"-fno-keep-inline-functions":      NoValue,
	"-foptimize-sibling-calls":        NoValue,
	"-fno-optimize-sibling-calls":     NoValue,
	"-fomit-frame-pointer":            NoValue,
	"-fno-omit-frame-pointer":         NoValue,
	"-fstrict-aliasing":               NoValue,
	"-fno-strict-aliasing":            NoValue,
	"-fstrict-overflow":               NoValue,
	"-fno-strict-overflow":            NoValue,
	"-fwrapv":                         NoValue,
	"-ftrapv":                         NoValue,
	"-fno-delete-null-pointer-checks": NoValue,
	"-fno-strict-vtable-pointers":     NoValue,
	"-fdata-sections":                 NoValue,
	"-fno-data-sections":              NoValue,
	"-ffunction-sections":             NoValue,
	"-fno-function-sections":          NoValue,
	"-fno-jump-tables":                NoValue,
	"-fzero-initialized-in-bss":       NoValue,
	"-fno-zero-initialized-in-bss":    NoValue,
	"-flto":                           NoValue,
	"-flto=thin":                      NoValue,
	"-flto=full":                      NoValue,
	"-fno-lto":                        NoValue,
	"-fvectorize":                     NoValue,
	"-fno-vectorize":                  NoValue,
	"-fslp-vectorize":                 NoValue,
	"-fno-slp-vectorize":              NoValue,

	// Code generation.
	"-fPIC":                           NoValue,
	"-fpic":                           NoValue,
	"-fPIE":                           NoValue,
	"-fpie":                           NoValue,
	"-fno-PIC":                        NoValue,
	"-fno-pic":                        NoValue,
	"-fno-PIE":                        NoValue,
	"-fno-pie":                        NoValue,
	"-fcommon":                        NoValue,
	"-fno-common":                     NoValue,
	"-fno-builtin":                    NoValue,
	"-ffreestanding":                  NoValue,
	"-fhosted":                        NoValue,
	"-fno-plt":                        NoValue,
	"-fplt":                           NoValue,
	"-fno-ident":                      NoValue,
	"-fident":                         NoValue,
	"-fno-gnu-unique":                 NoValue,
	"-fno-semantic-interposition":     NoValue,
	"-fvisibility=hidden":             NoValue,
	"-fvisibility=default":            NoValue,
	"-fvisibility-inlines-hidden":     NoValue,
	"-fasynchronous-unwind-tables":    NoValue,
	"-fno-asynchronous-unwind-tables": NoValue,
	"-funwind-tables":                 NoValue,
	"-fno-unwind-tables":              NoValue,
	"-fstack-protector":               NoValue,
	"-fstack-protector-all":           NoValue,
	"-fstack-protector-strong":        NoValue,
	"-fno-stack-protector":            NoValue,
	"-fstack-clash-protection":        NoValue,
	"-fno-stack-clash-protection":     NoValue,
	"-fcf-protection":                 NoValue,
	"-fsplit-stack":                   NoValue,
	"-fno-split-stack":                NoValue,
	"-fverbose-asm":                   NoValue,
	"-fno-sanitize-recover":           NoValue,
	"-fsanitize-recover":              NoValue,

	// Sanitizers and fuzzing instrumentation.
	"-fsanitize=address":                         NoValue,
	"-fsanitize=memory":                          NoValue,
	"-fsanitize=thread":                          NoValue,
	"-fsanitize=undefined":                       NoValue,
	"-fsanitize=address,undefined":               NoValue,
	"-fsanitize=memory,undefined":                NoValue,
	"-fsanitize=thread,undefined":                NoValue,
	"-fsanitize=fuzzer":                          NoValue,
	"-fsanitize=fuzzer-no-link":                  NoValue,
	"-fsanitize-address-use-after-scope":         NoValue,
	"-fsanitize-memory-track-origins":            NoValue,
	"-DFUZZING_BUILD_MODE_UNSAFE_FOR_PRODUCTION": NoValue,

	// Coverage instrumentation.
	"-fprofile-arcs":           NoValue,
	"-ftest-coverage":          NoValue,
	"-coverage":                NoValue,
	"--coverage":               NoValue,
	"-fprofile-instr-generate": NoValue,
	"-fcoverage-mapping":       NoValue,
	"-fno-coverage-mapping":    NoValue,

	// Component pass-through.
	"-Xclang":          OneValue,
	"-Xpreprocessor":   OneValue,
	"-Xassembler":      OneValue,
	"-Xlinker":         OneValue,
	"-Xanalyzer":       OneValue,
	"-Xopenmp-target":  OneValue,
	"-Xcuda-fatbinary": OneValue,
	"-Xcuda-ptxas":     OneValue,

	// Linking.
	"-l":                       OneValue,
	"-L":                       OneValue,
	"-T":                       OneValue,
	"-u":                       OneValue,
	"-e":                       OneValue,
	"-z":                       OneValue,
	"-G":                       OneValue,
	"-B":                       OneValue,
	"-rpath":                   OneValue,
	"-shared":                  NoValue,
	"-static":                  NoValue,
	"-static-pie":              NoValue,
	"-static-libgcc":           NoValue,
	"-static-libstdc++":        NoValue,
	"-shared-libgcc":           NoValue,
	"-pie":                     NoValue,
	"-no-pie":                  NoValue,
	"-nopie":                   NoValue,
	"-nostdlib":                NoValue,
	"-nostdlib++":              NoValue,
	"-nodefaultlibs":           NoValue,
	"-nostartfiles":            NoValue,
	"-rdynamic":                NoValue,
	"-s":                       NoValue,
	"-r":                       NoValue,
	"-symbolic":                NoValue,
	"-lm":                      NoValue,
	"-lc":                      NoValue,
	"-ldl":                     NoValue,
	"-lrt":                     NoValue,
	"-lgcc":                    NoValue,
	"-lpthread":                NoValue,
	"-lstdc++":                 NoValue,
	"-lc++":                    NoValue,
	"-fuse-ld=lld":             NoValue,
	"-fuse-ld=gold":            NoValue,
	"-fuse-ld=bfd":             NoValue,
	"-stdlib=libc++":           NoValue,
	"-stdlib=libstdc++":        NoValue,
	"-rtlib=compiler-rt":       NoValue,
	"-rtlib=libgcc":            NoValue,
	"-Wl,-dead_strip":          NoValue,
	"-Wl,--as-needed":          NoValue,
	"-Wl,--no-as-needed":       NoValue,
	"-Wl,--gc-sections":        NoValue,
	"-Wl,--no-undefined":       NoValue,
	"-Wl,--export-dynamic":     NoValue,
	"-Wl,-E":                   NoValue,
	"-Wl,-z,defs":              NoValue,
	"-Wl,-z,relro":             NoValue,
	"-Wl,-z,now":               NoValue,
	"-Wl,-Bsymbolic":           NoValue,
	"-Wl,-Bsymbolic-functions": NoValue,
	"-Wl,--whole-archive":      NoValue,
	"-Wl,--no-whole-archive":   NoValue,
	"-Wl,--start-group":        NoValue,
	"-Wl,--end-group":          NoValue,

	// Darwin linker.
	"-dynamiclib":                  NoValue,
	"-dynamic":                     NoValue,
	"-bundle":                      NoValue,
	"-all_load":                    NoValue,
	"-ObjC":                        NoValue,
	"-single_module":               NoValue,
	"-flat_namespace":              NoValue,
	"-twolevel_namespace":          NoValue,
	"-dead_strip":                  NoValue,
	"-headerpad_max_install_names": NoValue,
	"-current_version":             OneValue,
	"-compatibility_version":       OneValue,
	"-install_name":                OneValue,
	"-framework":                   OneValue,
	"-weak_framework":              OneValue,
	"-weak_library":                OneValue,
	"-reexport_library":            OneValue,
	"-force_load":                  OneValue,
	"-filelist":                    OneValue,
	"-exported_symbols_list":       OneValue,
	"-unexported_symbols_list":     OneValue,
	"-exported_symbol":             OneValue,
	"-bundle_loader":               OneValue,
	"-undefined":                   OneValue,
	"-umbrella":                    OneValue,
	"-sub_library":                 OneValue,
	"-sub_umbrella":                OneValue,
	"-allowable_client":            OneValue,
	"-client_name":                 OneValue,
	"-dylib_file":                  OneValue,
	"-image_base":                  OneValue,
	"-init":                        OneValue,
	"-seg1addr":                    OneValue,
	"-pagezero_size":               OneValue,
	"-multiply_defined":            OneValue,
	"-read_only_relocs":            OneValue,

	// Target architecture.
	"-m16":                         NoValue,
	"-m32":                         NoValue,
	"-mx32":                        NoValue,
	"-m64":                         NoValue,
	"-miamcu":                      NoValue,
	"-mmmx":                        NoValue,
	"-mno-mmx":                     NoValue,
	"-msse":                        NoValue,
	"-mno-sse":                     NoValue,
	"-msse2":                       NoValue,
	"-mno-sse2":                    NoValue,
	"-msse3":                       NoValue,
	"-mno-sse3":                    NoValue,
	"-mssse3":                      NoValue,
	"-msse4":                       NoValue,
	"-msse4.1":                     NoValue,
	"-msse4.2":                     NoValue,
	"-mavx":                        NoValue,
	"-mno-avx":                     NoValue,
	"-mavx2":                       NoValue,
	"-mavx512f":                    NoValue,
	"-maes":                        NoValue,
	"-mno-aes":                     NoValue,
	"-mpclmul":                     NoValue,
	"-mpopcnt":                     NoValue,
	"-mbmi":                        NoValue,
	"-mbmi2":                       NoValue,
	"-mlzcnt":                      NoValue,
	"-mfma":                        NoValue,
	"-mf16c":                       NoValue,
	"-mrdrnd":                      NoValue,
	"-mrdseed":                     NoValue,
	"-msha":                        NoValue,
	"-mcx16":                       NoValue,
	"-m3dnow":                      NoValue,
	"-mno-3dnow":                   NoValue,
	"-msoft-float":                 NoValue,
	"-mhard-float":                 NoValue,
	"-mno-80387":                   NoValue,
	"-mno-fp-ret-in-387":           NoValue,
	"-mno-red-zone":                NoValue,
	"-mcmodel=kernel":              NoValue,
	"-mcmodel=small":               NoValue,
	"-mcmodel=medium":              NoValue,
	"-mcmodel=large":               NoValue,
	"-mstackrealign":               NoValue,
	"-mno-stackrealign":            NoValue,
	"-mretpoline":                  NoValue,
	"-mretpoline-external-thunk":   NoValue,
	"-mskip-rax-setup":             NoValue,
	"-mindirect-branch-register":   NoValue,
	"-momit-leaf-frame-pointer":    NoValue,
	"-mno-omit-leaf-frame-pointer": NoValue,
	"-mfentry":                     NoValue,
	"-mrecord-mcount":              NoValue,
	"-mnop-mcount":                 NoValue,
	"-mgeneral-regs-only":          NoValue,
	"-mno-implicit-float":          NoValue,
	"-mlong-double-64":             NoValue,
	"-mlong-double-128":            NoValue,
	"-mthumb":                      NoValue,
	"-mno-thumb":                   NoValue,
	"-marm":                        NoValue,
	"-munaligned-access":           NoValue,
	"-mno-unaligned-access":        NoValue,
	"-mlong-calls":                 NoValue,
	"-mglobal-merge":               NoValue,
	"-mno-global-merge":            NoValue,
	"-mbig-endian":                 NoValue,
	"-mlittle-endian":              NoValue,
	"-mabicalls":                   NoValue,
	"-mno-abicalls":                NoValue,
	"-mrelax":                      NoValue,
	"-mno-relax":                   NoValue,
}

// ArityOf returns the arity of flag and whether the flag is known.
func ArityOf(flag string) (Arity, bool) {
	a, ok := arityTable[flag]
	return a, ok
}

// ArityOrDefault returns the arity of flag, or NoValue if it is unknown.
func ArityOrDefault(flag string) Arity {
	return arityTable[flag]
}

// KnownFlags returns every flag in the table in sorted order.
func KnownFlags() []string {
	return slices.Sorted(maps.Keys(arityTable))
}
