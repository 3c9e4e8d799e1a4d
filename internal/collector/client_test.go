// SPDX-License-Identifier: MPL-2.0

package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/buildhook/buildhook/internal/rewrite"
	"github.com/buildhook/buildhook/internal/testutil"
)

func TestClient_FetchSettingsTimeout(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer hs.Close()

	client := NewClient(hs.URL, "t", WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := client.FetchSettings(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("FetchSettings() = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("FetchSettings() took %s", elapsed)
	}
}

func TestClient_FetchSettingsVersion(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Settings{Version: 2})
	}))
	defer hs.Close()

	_, err := NewClient(hs.URL, "t").FetchSettings(context.Background())
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("FetchSettings() = %v, want ErrUnsupportedVersion", err)
	}
}

func TestClient_SendsToken(t *testing.T) {
	t.Parallel()

	type received struct {
		auth, contentType string
		report            Report
	}
	got := make(chan received, 1)
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := received{auth: r.Header.Get("Authorization"), contentType: r.Header.Get("Content-Type")}
		if err := json.NewDecoder(r.Body).Decode(&rec.report); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		got <- rec
		writeJSON(w, http.StatusCreated, reportReceipt{ID: "abc"})
	}))
	defer hs.Close()

	report := Report{
		Original:  mustCommand(t, "cc", "-c", "x.c"),
		Directory: "/work",
		Outcome:   rewrite.MatchedNoOp,
	}
	id, err := NewClient(hs.URL+"/", "tok").Report(context.Background(), report)
	if err != nil {
		t.Fatalf("Report() = %v", err)
	}
	rec := <-got
	if id != "abc" || rec.auth != "Bearer tok" || rec.contentType != "application/json" {
		t.Errorf("id = %q, Authorization = %q, Content-Type = %q", id, rec.auth, rec.contentType)
	}
	if diff := cmp.Diff(report, rec.report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_StatusError(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer hs.Close()

	_, err := NewClient(hs.URL, "t").FetchSettings(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("FetchSettings() = %v, want *StatusError", err)
	}
	if statusErr.Code != http.StatusInternalServerError || statusErr.Message != "boom" {
		t.Errorf("StatusError = %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "500 Internal Server Error: boom") {
		t.Errorf("Error() = %q", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	t.Parallel()

	hs := httptest.NewServer(http.NotFoundHandler())
	url := hs.URL
	hs.Close()

	client := NewClient(url, "t")
	if _, err := client.FetchSettings(context.Background()); err == nil {
		t.Error("FetchSettings() against a closed server should fail")
	}
	if client.Healthy(context.Background()) {
		t.Error("Healthy() = true for a closed server")
	}
}

func TestNewClientFromEnv(t *testing.T) {
	testutil.MustUnsetenv(t, EnvURL)
	testutil.MustUnsetenv(t, EnvToken)
	testutil.MustUnsetenv(t, EnvSettingsTimeout)

	if _, err := NewClientFromEnv(); !errors.Is(err, ErrNoCollector) {
		t.Fatalf("NewClientFromEnv() without env = %v, want ErrNoCollector", err)
	}

	testutil.MustSetenv(t, EnvURL, "http://127.0.0.1:1")
	if _, err := NewClientFromEnv(); !errors.Is(err, ErrNoCollector) {
		t.Fatalf("NewClientFromEnv() without token = %v, want ErrNoCollector", err)
	}

	testutil.MustSetenv(t, EnvToken, "tok")
	client, err := NewClientFromEnv()
	if err != nil {
		t.Fatalf("NewClientFromEnv() = %v", err)
	}
	if client.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %s, want %s", client.Timeout(), DefaultTimeout)
	}

	testutil.MustSetenv(t, EnvSettingsTimeout, "750ms")
	client, err = NewClientFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if client.Timeout() != 750*time.Millisecond {
		t.Errorf("Timeout() = %s, want 750ms", client.Timeout())
	}

	client, err = NewClientFromEnv(WithTimeout(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if client.Timeout() != time.Second {
		t.Errorf("explicit option should win over env, Timeout() = %s", client.Timeout())
	}

	testutil.MustSetenv(t, EnvSettingsTimeout, "soon")
	client, err = NewClientFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if client.Timeout() != DefaultTimeout {
		t.Errorf("unparsable timeout should be ignored, Timeout() = %s", client.Timeout())
	}
}

func TestNewReport(t *testing.T) {
	t.Parallel()

	rules, err := rewrite.NewRuleSet([]rewrite.Rule{
		{Match: "gcc", Replace: "clang", Add: []string{"-g"}},
		{Match: "cc"},
	})
	if err != nil {
		t.Fatal(err)
	}
	replacer := rewrite.NewReplacer(rules)

	t.Run("rewritten", func(t *testing.T) {
		t.Parallel()

		original := mustCommand(t, "gcc", "-shared", "-o", "libx.so", "x.o")
		r := NewReport(original, replacer.Evaluate(original), "/b")
		if r.Outcome != rewrite.Rewritten || r.Replaced.Path != "clang" {
			t.Errorf("report = %+v", r)
		}
		if !r.SharedLibrary {
			t.Error("-shared link should be classified as a shared library build")
		}
		if !r.Effective().Equal(r.Replaced) {
			t.Error("Effective() should be the replaced command")
		}
	})

	t.Run("no-op keeps only the original", func(t *testing.T) {
		t.Parallel()

		original := mustCommand(t, "cc", "-c", "x.c")
		r := NewReport(original, replacer.Evaluate(original), "/b")
		if r.Outcome != rewrite.MatchedNoOp || !r.Replaced.IsZero() || r.SharedLibrary {
			t.Errorf("report = %+v", r)
		}
		if !r.Effective().Equal(original) {
			t.Error("Effective() should be the original command")
		}

		data, err := json.Marshal(r)
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), `"replaced"`) || strings.Contains(string(data), `"id"`) {
			t.Errorf("zero fields should be omitted: %s", data)
		}
		if !strings.Contains(string(data), `"outcome":"matched-no-op"`) {
			t.Errorf("outcome should marshal by name: %s", data)
		}
	})
}

func TestStore(t *testing.T) {
	t.Parallel()

	s := NewStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	in := Report{Original: mustCommand(t, "gcc", "a.c"), Directory: "/"}
	first := s.Add(in)
	second := s.Add(in)
	if first.ID == "" || first.ID == second.ID {
		t.Errorf("IDs %q and %q should be unique and non-empty", first.ID, second.ID)
	}
	if !first.ReceivedAt.Equal(fixed) {
		t.Errorf("ReceivedAt = %v", first.ReceivedAt)
	}

	in.Original.Args[0] = "mutated"
	reports := s.Reports()
	reports[1].Original.Args[1] = "mutated"
	again := s.Reports()
	if again[0].Original.Args[0] != "gcc" || again[1].Original.Args[1] != "a.c" {
		t.Error("store shares memory with callers")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
