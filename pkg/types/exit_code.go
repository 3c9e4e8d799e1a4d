// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"
)

const (
	// ExitSuccess is the exit status of a successful run.
	ExitSuccess ExitCode = 0
	// ExitFailure is the generic failure status.
	ExitFailure ExitCode = 1
	// ExitCannotExecute is returned when a program was found but could not
	// be executed.
	ExitCannotExecute ExitCode = 126
	// ExitCommandNotFound is returned when a program could not be resolved,
	// matching the shell convention.
	ExitCommandNotFound ExitCode = 127

	signalExitBase = 128
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the POSIX range 0-255.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode for errors.Is() compatibility.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if c is outside 0-255.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess reports whether c is zero.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the decimal form of c.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// ExitCodeOf maps the error returned by running a child process to the
// status a shell would report for it: the child's own status, 128+signal
// when it was killed, 127 when it could not be found, and 1 otherwise.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return ExitCode(signalExitBase + int(ws.Signal()))
		}
		if code := exitErr.ExitCode(); code >= 0 {
			return ExitCode(code)
		}
		return ExitFailure
	}

	if errors.Is(err, exec.ErrNotFound) {
		return ExitCommandNotFound
	}
	return ExitFailure
}
