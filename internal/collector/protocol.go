// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"errors"
	"fmt"
	"time"

	"github.com/buildhook/buildhook/internal/rewrite"
)

const (
	// EnvURL carries the collector's base URL to exec hooks.
	EnvURL = "BUILDHOOK_COLLECTOR_URL"
	// EnvToken carries the bearer token to exec hooks.
	EnvToken = "BUILDHOOK_COLLECTOR_TOKEN"
	// EnvSettingsTimeout optionally overrides DefaultTimeout in exec hooks.
	// It shares its name with the collector.settings_timeout config key.
	EnvSettingsTimeout = "BUILDHOOK_COLLECTOR_SETTINGS_TIMEOUT"

	// SettingsVersion is the settings document version this build speaks.
	SettingsVersion = 1

	// DefaultTimeout bounds each client request. Hooks sit on the critical
	// path of every compiler invocation.
	DefaultTimeout = 200 * time.Millisecond

	settingsPath = "/v1/settings"
	reportsPath  = "/v1/reports"
	healthPath   = "/health"
	metricsPath  = "/metrics"

	maxReportBytes = 1 << 20
)

var (
	// ErrUnsupportedVersion is returned for settings documents of another
	// version.
	ErrUnsupportedVersion = errors.New("unsupported settings version")
	// ErrInvalidReport is returned for reports without an original command.
	ErrInvalidReport = errors.New("invalid report")
)

type (
	// Settings is the document served at /v1/settings. It carries rules as
	// plain data; hooks compile them with Replacer.
	Settings struct {
		Version           int                       `json:"version"`
		UnknownFlagPolicy rewrite.UnknownFlagPolicy `json:"unknown_flag_policy"`
		Rules             []rewrite.Rule            `json:"rules"`
	}

	// Report describes one intercepted compiler invocation.
	Report struct {
		// ID is assigned by the collector.
		ID       string          `json:"id,omitempty"`
		Original rewrite.Command `json:"original"`
		// Replaced is set only when Outcome is rewrite.Rewritten.
		Replaced      rewrite.Command `json:"replaced,omitzero"`
		Directory     string          `json:"directory"`
		Outcome       rewrite.Outcome `json:"outcome"`
		SharedLibrary bool            `json:"shared_library"`
		// ReceivedAt is set by the collector.
		ReceivedAt time.Time `json:"received_at,omitzero"`
	}

	reportReceipt struct {
		ID string `json:"id"`
	}
)

// NewSettings builds the settings document for rules.
func NewSettings(rules *rewrite.RuleSet, policy rewrite.UnknownFlagPolicy) Settings {
	r := rules.Rules()
	if r == nil {
		r = []rewrite.Rule{}
	}
	return Settings{
		Version:           SettingsVersion,
		UnknownFlagPolicy: policy,
		Rules:             r,
	}
}

// Validate checks the version and policy.
func (s Settings) Validate() error {
	if s.Version != SettingsVersion {
		return fmt.Errorf("%w: %d (want %d)", ErrUnsupportedVersion, s.Version, SettingsVersion)
	}
	return s.UnknownFlagPolicy.Validate()
}

// Replacer compiles the rules. A malformed pattern is an error: the hook
// then runs the original command.
func (s Settings) Replacer() (*rewrite.Replacer, error) {
	rules, err := rewrite.NewRuleSet(s.Rules)
	if err != nil {
		return nil, err
	}
	return rewrite.NewReplacer(rules, rewrite.WithUnknownFlagPolicy(s.UnknownFlagPolicy)), nil
}

// NewReport builds a report for an evaluated command. Replaced is only kept
// for rewritten commands.
func NewReport(original rewrite.Command, result rewrite.Result, dir string) Report {
	r := Report{
		Original:  original.Clone(),
		Directory: dir,
		Outcome:   result.Outcome,
	}
	if result.Outcome == rewrite.Rewritten {
		r.Replaced = result.Command.Clone()
	}
	r.SharedLibrary = rewrite.IsSharedLibraryBuild(r.Effective())
	return r
}

// Validate checks the fields a hook must send.
func (r Report) Validate() error {
	if len(r.Original.Args) == 0 {
		return fmt.Errorf("%w: original command has no arguments", ErrInvalidReport)
	}
	if r.Directory == "" {
		return fmt.Errorf("%w: directory is empty", ErrInvalidReport)
	}
	return nil
}

// Effective returns the command that actually ran.
func (r Report) Effective() rewrite.Command {
	if r.Outcome == rewrite.Rewritten && !r.Replaced.IsZero() {
		return r.Replaced
	}
	return r.Original
}

func (r Report) clone() Report {
	c := r
	c.Original = r.Original.Clone()
	c.Replaced = r.Replaced.Clone()
	return c
}
