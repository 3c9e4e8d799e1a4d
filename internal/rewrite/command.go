// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"slices"
	"strings"

	"github.com/buildhook/buildhook/internal/pathresolve"
)

// ErrEmptyArguments is returned when a Command is built from an empty
// argument vector. Slot 0 must always be present.
var ErrEmptyArguments = errors.New("argument vector must contain at least the program name")

// Command is a compiler invocation: the executable as invoked plus its
// argument vector. Args[0] mirrors the display form of Path, following the
// C argv[0] convention.
//
// Commands are values. Every operation in this package that changes a
// Command returns a new one with its own backing array, so a caller can keep
// the original for reporting.
type Command struct {
	// Path is the executable path or bare name as invoked.
	Path string `json:"command"`
	// Args is the full argument vector including slot 0.
	Args []string `json:"arguments"`
}

// NewCommand builds a Command from an intercepted path and argument vector.
// The argument vector is copied.
func NewCommand(path string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, ErrEmptyArguments
	}
	return Command{Path: path, Args: slices.Clone(args)}, nil
}

// CommandFromArgv builds a Command whose Path is argv[0].
func CommandFromArgv(argv []string) (Command, error) {
	if len(argv) == 0 {
		return Command{}, ErrEmptyArguments
	}
	return NewCommand(argv[0], argv)
}

// Clone returns a deep copy of c.
func (c Command) Clone() Command {
	return Command{Path: c.Path, Args: slices.Clone(c.Args)}
}

// Equal reports whether c and other have the same path and arguments.
func (c Command) Equal(other Command) bool {
	return c.Path == other.Path && slices.Equal(c.Args, other.Args)
}

// IsZero reports whether c is the zero Command.
func (c Command) IsZero() bool {
	return c.Path == "" && len(c.Args) == 0
}

// Name returns the base name of the command path.
func (c Command) Name() string {
	return pathresolve.Basename(c.Path)
}

// String renders the argument vector separated by spaces. It does not quote;
// use it for logs, not for shells.
func (c Command) String() string {
	return strings.Join(c.Args, " ")
}
