package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(CompletionToggles.WithLabelValues(ToggleResult(true)))
	CompletionToggles.WithLabelValues(ToggleResult(true)).Inc()
	after := testutil.ToFloat64(CompletionToggles.WithLabelValues(ToggleResult(true)))
	if after-before != 1 {
		t.Errorf("delta = %v, want 1", after-before)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ScopeEdits.WithLabelValues("THIS", "update").Inc()
	ExpansionTruncated.WithLabelValues("span").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{"familyapp_scope_edits_total", "familyapp_expansion_truncated_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
