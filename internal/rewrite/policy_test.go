// SPDX-License-Identifier: MPL-2.0

package rewrite

import (
	"errors"
	"testing"
)

func TestUnknownFlagPolicy_Validate(t *testing.T) {
	t.Parallel()

	for _, p := range []UnknownFlagPolicy{"", PolicyDefaultZero, PolicyStrict} {
		if err := p.Validate(); err != nil {
			t.Errorf("Validate(%q) = %v", p, err)
		}
	}

	err := UnknownFlagPolicy("abort").Validate()
	if !errors.Is(err, ErrInvalidUnknownFlagPolicy) {
		t.Fatalf("Validate(abort) = %v, want ErrInvalidUnknownFlagPolicy", err)
	}
	var policyErr *InvalidUnknownFlagPolicyError
	if !errors.As(err, &policyErr) || policyErr.Value != "abort" {
		t.Errorf("Validate(abort) error = %#v", err)
	}
}

func TestUnknownFlagPolicy_String(t *testing.T) {
	t.Parallel()

	if got := UnknownFlagPolicy("").String(); got != "default-zero" {
		t.Errorf("String() of zero value = %q, want default-zero", got)
	}
	if !PolicyStrict.IsStrict() || PolicyDefaultZero.IsStrict() {
		t.Error("IsStrict() mismatch")
	}
}
