// SPDX-License-Identifier: MPL-2.0

package pathresolve

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// DefaultSearchPath is searched when PATH is unset or empty.
	DefaultSearchPath = "/bin:/usr/bin"

	listSeparator = ":"
)

// bareNamePattern matches names that contain no path separator and are
// therefore looked up on PATH.
var bareNamePattern = regexp.MustCompile(`^[A-Za-z0-9._+-]+$`)

// Resolver resolves commands against a search path.
//
// The zero value reads PATH from the process environment on every call.
type Resolver struct {
	searchPath *string
}

// New returns a Resolver that reads PATH from the environment at call time.
func New() *Resolver {
	return &Resolver{}
}

// WithSearchPath returns a Resolver that searches the given colon-separated
// list instead of the environment's PATH. An empty list falls back to
// DefaultSearchPath.
func WithSearchPath(searchPath string) *Resolver {
	return &Resolver{searchPath: &searchPath}
}

// ResolveAbsolute is New().ResolveAbsolute(command).
func ResolveAbsolute(command string) (string, bool) {
	return New().ResolveAbsolute(command)
}

// ResolveAbsolute returns the canonical absolute path of command.
//
// A bare name (letters, digits and ._+- only) is searched for in each
// directory of the search path in order; the first executable regular file
// wins and is canonicalized. Anything else is treated as a path and
// canonicalized directly. Canonicalization resolves symlinks and relative
// segments, so the target must exist.
func (r *Resolver) ResolveAbsolute(command string) (string, bool) {
	if command == "" {
		return "", false
	}
	if !IsBareName(command) {
		return canonical(command)
	}

	for _, dir := range SearchDirs(r.pathList()) {
		candidate := filepath.Join(dir, command)
		if !isExecutable(candidate) {
			continue
		}
		if resolved, ok := canonical(candidate); ok {
			return resolved, true
		}
	}
	return "", false
}

func (r *Resolver) pathList() string {
	if r == nil || r.searchPath == nil {
		return os.Getenv("PATH")
	}
	return *r.searchPath
}

// IsBareName reports whether command is looked up on PATH rather than
// treated as a path.
func IsBareName(command string) bool {
	return bareNamePattern.MatchString(command)
}

// SearchDirs splits a colon-separated search path. An empty list yields the
// directories of DefaultSearchPath. Empty entries denote the current
// directory, as in POSIX shells.
func SearchDirs(pathList string) []string {
	if pathList == "" {
		pathList = DefaultSearchPath
	}
	parts := strings.Split(pathList, listSeparator)
	dirs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			p = "."
		}
		dirs = append(dirs, p)
	}
	return dirs
}

// RemoveDir returns pathList without any entry that refers to dir. Entries
// are compared after filepath.Clean.
func RemoveDir(pathList, dir string) string {
	if pathList == "" || dir == "" {
		return pathList
	}
	target := filepath.Clean(dir)
	parts := strings.Split(pathList, listSeparator)
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && filepath.Clean(p) == target {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, listSeparator)
}

// PrependDir returns pathList with dir placed first.
func PrependDir(pathList, dir string) string {
	if pathList == "" {
		return dir
	}
	return dir + listSeparator + pathList
}

// Basename returns the final component of a slash-separated path. A path
// without a separator is returned unchanged.
func Basename(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// CurrentDirectory returns the absolute working directory of the process.
func CurrentDirectory() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Abs(wd)
}

// canonical is the realpath(3) equivalent: absolute, symlink-free, existing.
func canonical(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", false
	}
	return resolved, true
}
