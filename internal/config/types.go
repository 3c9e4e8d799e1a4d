// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/pkg/types"
)

const (
	// FuzzerNone selects no preset.
	FuzzerNone Fuzzer = ""
	// FuzzerLibFuzzer builds with clang and libFuzzer instrumentation.
	FuzzerLibFuzzer Fuzzer = "libfuzzer"
	// FuzzerAFL builds with the afl-clang wrappers.
	FuzzerAFL Fuzzer = "afl"
	// FuzzerLLVMCov builds with clang source-based coverage.
	FuzzerLLVMCov Fuzzer = "llvm-cov"

	// SanitizerNone selects no sanitizer.
	SanitizerNone Sanitizer = ""
	// SanitizerAddress selects AddressSanitizer.
	SanitizerAddress Sanitizer = "address"
	// SanitizerMemory selects MemorySanitizer.
	SanitizerMemory Sanitizer = "memory"
	// SanitizerThread selects ThreadSanitizer.
	SanitizerThread Sanitizer = "thread"

	// LogLevelDebug enables debug logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo enables informational logging.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidFuzzer is the sentinel wrapped by InvalidFuzzerError.
	ErrInvalidFuzzer = errors.New("invalid fuzzer")
	// ErrInvalidSanitizer is the sentinel wrapped by InvalidSanitizerError.
	ErrInvalidSanitizer = errors.New("invalid sanitizer")
	// ErrInvalidLogLevel is the sentinel wrapped by InvalidLogLevelError.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Fuzzer names a preset.
	Fuzzer string

	// InvalidFuzzerError is returned when a Fuzzer is not a known preset.
	InvalidFuzzerError struct {
		Value Fuzzer
	}

	// Sanitizer names a sanitizer variant of a preset.
	Sanitizer string

	// InvalidSanitizerError is returned when a Sanitizer is not known.
	InvalidSanitizerError struct {
		Value Sanitizer
	}

	// LogLevel is the minimum level the CLI logs at.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel is not known.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError collects field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds the resolved application configuration.
	Config struct {
		// MatchCC is the pattern selecting C compiler invocations.
		MatchCC string `json:"match_cc" mapstructure:"match_cc"`
		// MatchCXX is the pattern selecting C++ compiler invocations.
		MatchCXX string `json:"match_cxx" mapstructure:"match_cxx"`
		// ReplaceCC replaces matched C compilers. Empty leaves them as is.
		ReplaceCC string `json:"replace_cc" mapstructure:"replace_cc"`
		// ReplaceCXX replaces matched C++ compilers. Empty leaves them as is.
		ReplaceCXX string `json:"replace_cxx" mapstructure:"replace_cxx"`
		// AddArguments is appended after any preset arguments.
		AddArguments []string `json:"add_arguments" mapstructure:"add_arguments"`
		// RemoveArguments is removed after any preset removals.
		RemoveArguments []string  `json:"remove_arguments" mapstructure:"remove_arguments"`
		Fuzzer          Fuzzer    `json:"fuzzer" mapstructure:"fuzzer"`
		Sanitizer       Sanitizer `json:"sanitizer" mapstructure:"sanitizer"`
		// UnknownFlagPolicy decides how removals of flags with unknown arity
		// are handled.
		UnknownFlagPolicy rewrite.UnknownFlagPolicy `json:"unknown_flag_policy" mapstructure:"unknown_flag_policy"`
		// RulesFile, when set, replaces the cc/cxx rules with a toolchain file.
		RulesFile string `json:"rules_file" mapstructure:"rules_file"`
		// CompilationDB enables writing compile_commands.json after a run.
		CompilationDB     bool            `json:"compilation_db" mapstructure:"compilation_db"`
		CompilationDBPath string          `json:"compilation_db_path" mapstructure:"compilation_db_path"`
		Collector         CollectorConfig `json:"collector" mapstructure:"collector"`
		LogLevel          LogLevel        `json:"log_level" mapstructure:"log_level"`
	}

	// CollectorConfig configures the local rule and report collector.
	CollectorConfig struct {
		// ListenPort is the loopback port; 0 picks a free one.
		ListenPort types.ListenPort `json:"listen_port" mapstructure:"listen_port"`
		// SettingsTimeout bounds each hook's settings fetch.
		SettingsTimeout time.Duration `json:"settings_timeout" mapstructure:"settings_timeout"`
	}
)

// Validate returns an error if f is not a known preset.
func (f Fuzzer) Validate() error {
	switch f {
	case FuzzerNone, FuzzerLibFuzzer, FuzzerAFL, FuzzerLLVMCov:
		return nil
	default:
		return &InvalidFuzzerError{Value: f}
	}
}

// String returns the preset name.
func (f Fuzzer) String() string { return string(f) }

// Error implements the error interface.
func (e *InvalidFuzzerError) Error() string {
	return fmt.Sprintf("invalid fuzzer %q (valid: %s, %s, %s)", e.Value, FuzzerLibFuzzer, FuzzerAFL, FuzzerLLVMCov)
}

// Unwrap returns ErrInvalidFuzzer for errors.Is() compatibility.
func (e *InvalidFuzzerError) Unwrap() error { return ErrInvalidFuzzer }

// Validate returns an error if s is not a known sanitizer.
func (s Sanitizer) Validate() error {
	switch s {
	case SanitizerNone, SanitizerAddress, SanitizerMemory, SanitizerThread:
		return nil
	default:
		return &InvalidSanitizerError{Value: s}
	}
}

// String returns the sanitizer name.
func (s Sanitizer) String() string { return string(s) }

// Error implements the error interface.
func (e *InvalidSanitizerError) Error() string {
	return fmt.Sprintf("invalid sanitizer %q (valid: %s, %s, %s)", e.Value, SanitizerAddress, SanitizerMemory, SanitizerThread)
}

// Unwrap returns ErrInvalidSanitizer for errors.Is() compatibility.
func (e *InvalidSanitizerError) Unwrap() error { return ErrInvalidSanitizer }

// Validate returns an error if l is not a known level.
func (l LogLevel) Validate() error {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return nil
	default:
		return &InvalidLogLevelError{Value: l}
	}
}

// Error implements the error interface.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	if len(e.FieldErrors) == 1 {
		return "invalid config: " + e.FieldErrors[0].Error()
	}
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks the fields a config file schema cannot cover once flags and
// environment variables have been merged in. Unknown fuzzer and sanitizer
// names are not errors here; BuildInterception warns about and ignores them.
func (c *Config) Validate() error {
	var errs []error
	if err := c.UnknownFlagPolicy.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Collector.ListenPort.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Collector.SettingsTimeout <= 0 {
		errs = append(errs, fmt.Errorf("collector.settings_timeout must be positive, got %s", c.Collector.SettingsTimeout))
	}
	if err := c.LogLevel.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.CompilationDBPath == "" {
		errs = append(errs, errors.New("compilation_db_path must not be empty"))
	}
	for key, pattern := range map[string]string{"match_cc": c.MatchCC, "match_cxx": c.MatchCXX} {
		if err := rewrite.ValidatePattern(pattern); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		MatchCC:           rewrite.DefaultCCPattern,
		MatchCXX:          rewrite.DefaultCXXPattern,
		UnknownFlagPolicy: rewrite.PolicyDefaultZero,
		CompilationDBPath: DefaultCompilationDBPath,
		Collector: CollectorConfig{
			SettingsTimeout: DefaultSettingsTimeout,
		},
		LogLevel: LogLevelWarn,
	}
}
