// SPDX-License-Identifier: MPL-2.0

package hook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/buildhook/buildhook/internal/pathresolve"
)

const (
	// EnvShimDir names the shim directory in the build's environment.
	EnvShimDir = "BUILDHOOK_SHIM_DIR"

	// AppName is the binary's own name. Invoked under it, buildhook is the
	// CLI, never a hook.
	AppName = "buildhook"
)

// ErrInvalidShimName is returned for shim names that are not bare file
// names.
var ErrInvalidShimName = errors.New("invalid shim name")

// DefaultShimNames are the compiler names intercepted by default.
var DefaultShimNames = []string{"cc", "gcc", "g++", "c++", "clang", "clang++"}

// ShimDir is a directory of compiler-named symlinks to the buildhook binary.
type ShimDir struct {
	// Path is the directory.
	Path string
	// Names lists the shims in creation order.
	Names []string
}

// CreateShimDir creates a fresh shim directory under parent (os.TempDir
// when empty) with a symlink to binary for each of DefaultShimNames and
// extra. Duplicate names are created once.
func CreateShimDir(parent, binary string, extra ...string) (*ShimDir, error) {
	target, err := filepath.Abs(binary)
	if err != nil {
		return nil, fmt.Errorf("resolving buildhook binary: %w", err)
	}

	names := slices.Concat(DefaultShimNames, extra)
	slices.Sort(names)
	names = slices.Compact(names)
	for _, name := range names {
		if !pathresolve.IsBareName(name) || name == AppName {
			return nil, fmt.Errorf("%w: %q", ErrInvalidShimName, name)
		}
	}

	dir, err := os.MkdirTemp(parent, "buildhook-shims-*")
	if err != nil {
		return nil, fmt.Errorf("creating shim directory: %w", err)
	}
	for _, name := range names {
		if err := os.Symlink(target, filepath.Join(dir, name)); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("creating shim %s: %w", name, err)
		}
	}
	return &ShimDir{Path: dir, Names: names}, nil
}

// Remove deletes the directory and its symlinks.
func (d *ShimDir) Remove() error {
	return os.RemoveAll(d.Path)
}

// Environ returns environ with the shim directory first on PATH and
// EnvShimDir set.
func (d *ShimDir) Environ(environ []string) []string {
	path, _ := LookupEnv(environ, "PATH")
	out := setEnv(environ, "PATH", pathresolve.PrependDir(path, d.Path))
	return setEnv(out, EnvShimDir, d.Path)
}

// IsShimInvocation reports whether a process started as argv0 should run as
// a hook: it was started through a shim in the shim directory named by
// environ, or under one of DefaultShimNames. The name "buildhook" is always
// the CLI.
func IsShimInvocation(argv0 string, environ []string) bool {
	name := pathresolve.Basename(argv0)
	if name == AppName || name == "" {
		return false
	}
	if slices.Contains(DefaultShimNames, name) {
		return true
	}
	shimDir, ok := LookupEnv(environ, EnvShimDir)
	if !ok || shimDir == "" {
		return false
	}
	if !pathresolve.IsBareName(argv0) {
		return filepath.Clean(filepath.Dir(argv0)) == filepath.Clean(shimDir)
	}
	_, err := os.Lstat(filepath.Join(shimDir, name))
	return err == nil
}
