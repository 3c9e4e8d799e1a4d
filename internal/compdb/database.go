// SPDX-License-Identifier: MPL-2.0

package compdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/buildhook/buildhook/internal/collector"
	"github.com/buildhook/buildhook/internal/rewrite"
)

type (
	// Entry is one compile_commands.json record.
	Entry struct {
		Directory string   `json:"directory"`
		File      string   `json:"file"`
		Output    string   `json:"output"`
		Arguments []string `json:"arguments"`
		// Command is Arguments quoted for a POSIX shell.
		Command string `json:"command"`
	}

	entryKey struct {
		directory, file, output string
	}
)

// Entries returns one entry per source file of cmd run in dir. Slot 0 of the
// entry's arguments is the command path, which is absolute once the command
// has been resolved.
func Entries(cmd rewrite.Command, dir string) ([]Entry, error) {
	cl := ParseCommandLine(cmd.Args)
	if len(cl.Inputs) == 0 {
		return nil, nil
	}

	args := make([]string, 0, len(cmd.Args))
	args = append(args, cmd.Path)
	if len(cmd.Args) > 1 {
		args = append(args, cmd.Args[1:]...)
	}
	command, err := QuoteArgs(args)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(cl.Inputs))
	for _, input := range cl.Inputs {
		entries = append(entries, Entry{
			Directory: dir,
			File:      input,
			Output:    cl.Output,
			Arguments: slices.Clone(args),
			Command:   command,
		})
	}
	return entries, nil
}

// FromReports builds the database for reports in order. The command that
// actually ran is used: the replacement when a rewrite happened. When the
// same file is compiled to the same output in the same directory more than
// once, the last invocation wins but keeps the first one's position.
func FromReports(reports []collector.Report) ([]Entry, error) {
	var entries []Entry
	index := make(map[entryKey]int)

	for _, r := range reports {
		batch, err := Entries(r.Effective(), r.Directory)
		if err != nil {
			return nil, fmt.Errorf("report %s: %w", r.ID, err)
		}
		for _, e := range batch {
			key := entryKey{directory: e.Directory, file: e.File, output: e.Output}
			if i, seen := index[key]; seen {
				entries[i] = e
				continue
			}
			index[key] = len(entries)
			entries = append(entries, e)
		}
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// QuoteArgs joins args into a POSIX shell command line.
func QuoteArgs(args []string) (string, error) {
	quoted := make([]string, len(args))
	for i, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangPOSIX)
		if err != nil {
			return "", fmt.Errorf("cannot quote argument %d: %w", i, err)
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " "), nil
}

// Write stores entries at path. The file is written next to its destination
// and renamed into place, so readers never see a partial database.
func Write(path string, entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode compilation database: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".compile_commands-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing compilation database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing compilation database: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("setting compilation database permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	renamed = true
	return nil
}

// Read loads a database written by Write.
func Read(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}
