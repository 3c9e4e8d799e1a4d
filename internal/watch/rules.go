// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/buildhook/buildhook/internal/config"
	"github.com/buildhook/buildhook/internal/rewrite"
)

// RulesTarget receives each valid revision of a rules file.
type RulesTarget interface {
	SetRules(rules *rewrite.RuleSet)
}

// NewRulesWatcher returns a Watcher that reloads the rules file at path and
// hands the compiled rules to target. A revision that fails to load or
// compile is logged and the previous rules stay in effect.
func NewRulesWatcher(path string, target RulesTarget, logger *log.Logger, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve rules file: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	return New(Config{
		Patterns: []string{doublestar.EscapeMeta(filepath.Base(abs))},
		BaseDir:  filepath.Dir(abs),
		Debounce: debounce,
		Logger:   logger,
		OnChange: func(_ context.Context, _ []string) error {
			rules, err := ReloadRules(abs)
			if err != nil {
				return err
			}
			target.SetRules(rules)
			logger.Info("rules reloaded", "path", abs, "rules", rules.Len())
			return nil
		},
	})
}

// ReloadRules loads and compiles the rules file at path.
func ReloadRules(path string) (*rewrite.RuleSet, error) {
	rf, err := config.LoadRulesFile(path)
	if err != nil {
		return nil, err
	}
	return rewrite.NewRuleSet(rf.Rules())
}
