// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"fmt"
)

const (
	// PolicyDefaultZero treats a removal flag missing from the arity table as
	// a bare flag and removes that token alone.
	PolicyDefaultZero UnknownFlagPolicy = "default-zero"
	// PolicyStrict rejects the whole rewrite when any removal flag is missing
	// from the arity table.
	PolicyStrict UnknownFlagPolicy = "strict"
)

// ErrInvalidUnknownFlagPolicy is the sentinel wrapped by
// InvalidUnknownFlagPolicyError.
var ErrInvalidUnknownFlagPolicy = errors.New("invalid unknown flag policy")

type (
	// UnknownFlagPolicy decides what happens when a rule asks to remove a flag
	// whose arity is not known. The zero value behaves like PolicyDefaultZero.
	UnknownFlagPolicy string

	// InvalidUnknownFlagPolicyError is returned when an UnknownFlagPolicy is
	// not one of the defined policies.
	InvalidUnknownFlagPolicyError struct {
		Value UnknownFlagPolicy
	}
)

// Error implements the error interface.
func (e *InvalidUnknownFlagPolicyError) Error() string {
	return fmt.Sprintf("invalid unknown flag policy %q (valid: %s, %s)", e.Value, PolicyDefaultZero, PolicyStrict)
}

// Unwrap returns ErrInvalidUnknownFlagPolicy for errors.Is() compatibility.
func (e *InvalidUnknownFlagPolicyError) Unwrap() error { return ErrInvalidUnknownFlagPolicy }

// Validate returns an error if p is not a defined policy. The empty string is
// accepted as the default.
func (p UnknownFlagPolicy) Validate() error {
	switch p {
	case "", PolicyDefaultZero, PolicyStrict:
		return nil
	default:
		return &InvalidUnknownFlagPolicyError{Value: p}
	}
}

// String returns the policy name, with the empty value reported as the
// default.
func (p UnknownFlagPolicy) String() string {
	if p == "" {
		return string(PolicyDefaultZero)
	}
	return string(p)
}

// IsStrict reports whether p rejects unknown flags.
func (p UnknownFlagPolicy) IsStrict() bool {
	return p == PolicyStrict
}
