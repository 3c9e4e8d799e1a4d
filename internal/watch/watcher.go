// SPDX-License-Identifier: MPL-2.0

// Package watch reloads configuration files while a build is running.
//
// A Watcher monitors the directories that can contain files matching a set
// of glob patterns and invokes a callback once the matching files have been
// quiet for a debounce period. Editors that save by writing a temporary file
// and renaming it over the original are handled because directories, not
// files, are watched.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is unset.
const DefaultDebounce = 250 * time.Millisecond

var (
	// ErrNoPatterns is returned by New when there is nothing to watch.
	ErrNoPatterns = errors.New("no watch patterns")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("watcher already running")

	// ErrInvalidPattern is the sentinel behind InvalidPatternError.
	ErrInvalidPattern = errors.New("invalid watch pattern")

	// editor swap and backup files never trigger a reload
	defaultIgnores = []string{
		"**/*.swp",
		"**/*.swo",
		"**/*~",
		"**/.#*",
		"**/#*#",
		"**/.DS_Store",
	}
)

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Patterns are doublestar globs relative to BaseDir. A pattern
		// containing "**" watches its static prefix recursively.
		Patterns []string
		// Ignore is merged with the built-in editor-file ignores.
		Ignore []string
		// Debounce values <= 0 use DefaultDebounce.
		Debounce time.Duration
		// BaseDir defaults to the working directory.
		BaseDir string
		// OnChange receives the changed paths relative to BaseDir, sorted.
		OnChange func(ctx context.Context, changed []string) error
		Logger   *log.Logger
	}

	// InvalidPatternError reports a glob that doublestar cannot parse.
	InvalidPatternError struct {
		Pattern string
	}

	// Watcher monitors paths and fires a debounced callback when matching
	// files change. Run may be called once.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		logger   *log.Logger
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid watch pattern %q", e.Pattern)
}

// Unwrap returns ErrInvalidPattern for errors.Is() compatibility.
func (e *InvalidPatternError) Unwrap() error { return ErrInvalidPattern }

// New validates cfg and registers the directories its patterns can match.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Patterns) == 0 {
		return nil, ErrNoPatterns
	}
	for _, pat := range slices.Concat(cfg.Patterns, cfg.Ignore) {
		if !doublestar.ValidatePattern(pat) {
			return nil, &InvalidPatternError{Pattern: pat}
		}
	}

	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		baseDir = wd
	}
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		logger:   logger,
		debounce: debounce,
		baseDir:  absBase,
	}

	for _, pat := range cfg.Patterns {
		if err := w.addPattern(pat); err != nil {
			if closeErr := fsw.Close(); closeErr != nil {
				logger.Warn("close watcher after init failure", "err", closeErr)
			}
			return nil, err
		}
	}
	return w, nil
}

// Run processes events until ctx is done. It returns nil on cancellation and
// an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// fire drains pending into one OnChange call. A fire that lands while
	// the previous callback is still running is retried after another
	// debounce period so no change is dropped.
	fire := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			w.logger.Debug("reload in progress, deferring")
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(pending) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Sorted(maps.Keys(pending))
		clear(pending)
		mu.Unlock()

		if w.cfg.OnChange == nil {
			return
		}
		if err := w.cfg.OnChange(ctx, changed); err != nil {
			w.logger.Error("reload failed", "changed", changed, "err", err)
		}
	}

	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("close watcher", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("fsnotify event channel closed unexpectedly")
			}
			if evt.Has(fsnotify.Chmod) && !evt.Has(fsnotify.Write) {
				continue
			}

			rel := w.relative(evt.Name)
			if evt.Has(fsnotify.Create) {
				w.maybeAddDir(evt.Name, rel)
			}
			if w.isIgnored(rel) || !w.matches(rel) {
				continue
			}

			w.logger.Debug("watched file changed", "path", rel, "op", evt.Op.String())
			mu.Lock()
			pending[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, fire)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("fsnotify error channel closed unexpectedly")
			}
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("fatal fsnotify error: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// WatchedDirs returns the directories registered with fsnotify.
func (w *Watcher) WatchedDirs() []string {
	return slices.Sorted(slices.Values(w.fsw.WatchList()))
}

// addPattern registers the static prefix directory of pat, recursively when
// pat can match below it.
func (w *Watcher) addPattern(pat string) error {
	base, rest := doublestar.SplitPattern(filepath.ToSlash(pat))
	dir := filepath.Join(w.baseDir, filepath.FromSlash(base))

	if !strings.Contains(rest, "**") {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watch directory %q: %w", dir, err)
		}
		return nil
	}

	walkErr := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("skipping inaccessible path", "path", path, "err", err)
			return nil //nolint:nilerr // unreadable subtrees are skipped
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.isIgnored(w.relative(path)+"/") {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch directory %q: %w", path, err)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("walk %q: %w", dir, walkErr)
	}
	return nil
}

// maybeAddDir extends recursive patterns to directories created after New.
func (w *Watcher) maybeAddDir(path, rel string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() || w.isIgnored(rel+"/") {
		return
	}
	for _, pat := range w.cfg.Patterns {
		base, rest := doublestar.SplitPattern(filepath.ToSlash(pat))
		if !strings.Contains(rest, "**") {
			continue
		}
		if base == "." || rel == base || strings.HasPrefix(filepath.ToSlash(rel), base+"/") {
			if err := w.fsw.Add(path); err != nil {
				w.logger.Warn("watch new directory", "path", path, "err", err)
			}
			return
		}
	}
}

func (w *Watcher) relative(path string) string {
	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (w *Watcher) isIgnored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return matchAny(w.cfg.Patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(filepath.ToSlash(pat), rel); err == nil && ok {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	return slices.Clone(defaultIgnores)
}
