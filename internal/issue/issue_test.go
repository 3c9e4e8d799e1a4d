// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

func TestValues_OrderedAndComplete(t *testing.T) {
	t.Parallel()

	values := Values()
	if len(values) != int(PermissionDeniedId) {
		t.Fatalf("Values() has %d issues, want %d", len(values), PermissionDeniedId)
	}
	for i, iss := range values {
		if iss.Id() != Id(i+1) {
			t.Errorf("Values()[%d].Id() = %d, want %d", i, iss.Id(), i+1)
		}
		if strings.TrimSpace(string(iss.MarkdownMsg())) == "" {
			t.Errorf("issue %d has no message", iss.Id())
		}
		if Get(iss.Id()) != iss {
			t.Errorf("Get(%d) does not return the catalog entry", iss.Id())
		}
	}
	if Get(0) != nil || Get(PermissionDeniedId+1) != nil {
		t.Error("Get() of unknown id should be nil")
	}
}

func TestIssue_LinksAreCopies(t *testing.T) {
	t.Parallel()

	iss := Get(InvalidRulePatternId)
	links := iss.ExtLinks()
	if len(links) == 0 {
		t.Fatal("InvalidRulePattern should carry an external link")
	}
	links[0] = "mutated"
	if iss.ExtLinks()[0] == "mutated" {
		t.Error("ExtLinks() returned the internal slice")
	}
}

func TestIssue_Render(t *testing.T) {
	t.Parallel()

	for _, iss := range Values() {
		out, err := iss.Render("notty")
		if err != nil {
			t.Errorf("Render(%d) error = %v", iss.Id(), err)
			continue
		}
		if strings.TrimSpace(out) == "" {
			t.Errorf("Render(%d) is empty", iss.Id())
		}
	}

	out, err := Get(CompilerNotFoundId).Render("notty")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Compiler not found") || !strings.Contains(out, "See also") {
		t.Errorf("rendered CompilerNotFound missing heading or links:\n%s", out)
	}
}
