// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"

	"github.com/buildhook/buildhook/internal/cueutil"
	"github.com/buildhook/buildhook/internal/issue"
)

const (
	// AppName is the application name.
	AppName = "buildhook"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes every environment variable read as configuration.
	EnvPrefix = "BUILDHOOK"
)

//go:embed config_schema.cue
var configSchema []byte

// compilerEnv binds the conventional compiler variables to the replacement
// keys, so CC=afl-clang make works as it would without buildhook.
var compilerEnv = map[string]string{
	"replace_cc":  "CC",
	"replace_cxx": "CXX",
}

// ConfigDir returns the buildhook configuration directory under the
// platform's user configuration root ($XDG_CONFIG_HOME or ~/.config on Linux).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(root, AppName), nil
}

// DefaultConfigPath returns the path config.cue is read from when no file is
// given explicitly.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}

func newViper() *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("match_cc", defaults.MatchCC)
	v.SetDefault("match_cxx", defaults.MatchCXX)
	v.SetDefault("replace_cc", defaults.ReplaceCC)
	v.SetDefault("replace_cxx", defaults.ReplaceCXX)
	v.SetDefault("add_arguments", defaults.AddArguments)
	v.SetDefault("remove_arguments", defaults.RemoveArguments)
	v.SetDefault("fuzzer", string(defaults.Fuzzer))
	v.SetDefault("sanitizer", string(defaults.Sanitizer))
	v.SetDefault("unknown_flag_policy", string(defaults.UnknownFlagPolicy))
	v.SetDefault("rules_file", defaults.RulesFile)
	v.SetDefault("compilation_db", defaults.CompilationDB)
	v.SetDefault("compilation_db_path", defaults.CompilationDBPath)
	v.SetDefault("collector.listen_port", int(defaults.Collector.ListenPort))
	v.SetDefault("collector.settings_timeout", defaults.Collector.SettingsTimeout.String())
	v.SetDefault("log_level", string(defaults.LogLevel))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range compilerEnv {
		// BindEnv only errors without a key.
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), env)
	}
	return v
}

// loadWithOptions performs option-driven config loading without touching
// package state. It returns the config and the file it was read from, if
// any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper()

	for key, flag := range opts.Flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, "", fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Compare it with the output of 'buildhook config dump'").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithIssue(issue.ConfigLoadFailedId).
			WithResource(resolvedPath).
			WithSuggestion("Check BUILDHOOK_* environment variables and command-line flags").
			WithSuggestion("Run 'buildhook config show' to see the effective values").
			Wrap(err).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// resolveConfigFile picks the config file: an explicit path must exist;
// otherwise config.cue in the config directory, then in the working
// directory. No file at all is not an error.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithIssue(issue.ConfigLoadFailedId).
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'buildhook config init' to create a config file").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		dir, err := ConfigDir()
		if err != nil {
			return "", err
		}
		cfgDir = dir
	}

	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// loadCUEIntoViper validates a config file against #Config and merges it
// into v. It decodes into a map rather than going through
// cueutil.ParseAndDecode because viper merges maps, and every field is
// optional so validation is not concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
		return err
	}

	ctx := cuecontext.New()
	schemaValue := ctx.CompileBytes(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return cueutil.FormatError(userValue.Err(), path)
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Config")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return cueutil.FormatError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a config.cue holding the defaults unless one
// exists. It returns the path and whether a file was written.
func CreateDefaultConfig() (string, bool, error) {
	cfgPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if fileExists(cfgPath) {
		return cfgPath, false, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, true, nil
}

// GenerateCUE renders cfg as a config.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// buildhook configuration\n")
	sb.WriteString("// Flags and BUILDHOOK_* environment variables override these values.\n\n")

	fmt.Fprintf(&sb, "match_cc:  %q\n", cfg.MatchCC)
	fmt.Fprintf(&sb, "match_cxx: %q\n", cfg.MatchCXX)
	if cfg.ReplaceCC != "" {
		fmt.Fprintf(&sb, "replace_cc: %q\n", cfg.ReplaceCC)
	}
	if cfg.ReplaceCXX != "" {
		fmt.Fprintf(&sb, "replace_cxx: %q\n", cfg.ReplaceCXX)
	}
	writeCUEList(&sb, "add_arguments", cfg.AddArguments)
	writeCUEList(&sb, "remove_arguments", cfg.RemoveArguments)

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "fuzzer:              %q\n", cfg.Fuzzer)
	fmt.Fprintf(&sb, "sanitizer:           %q\n", cfg.Sanitizer)
	fmt.Fprintf(&sb, "unknown_flag_policy: %q\n", cfg.UnknownFlagPolicy.String())
	if cfg.RulesFile != "" {
		fmt.Fprintf(&sb, "rules_file: %q\n", cfg.RulesFile)
	}

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "compilation_db:      %v\n", cfg.CompilationDB)
	fmt.Fprintf(&sb, "compilation_db_path: %q\n", cfg.CompilationDBPath)

	sb.WriteString("\ncollector: {\n")
	fmt.Fprintf(&sb, "\tlisten_port:      %d\n", cfg.Collector.ListenPort)
	fmt.Fprintf(&sb, "\tsettings_timeout: %q\n", cfg.Collector.SettingsTimeout.String())
	sb.WriteString("}\n")

	fmt.Fprintf(&sb, "\nlog_level: %q\n", cfg.LogLevel)
	return sb.String()
}

func writeCUEList(sb *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s: [", key)
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(sb, "%q", item)
	}
	sb.WriteString("]\n")
}
