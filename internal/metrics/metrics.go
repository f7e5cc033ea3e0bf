// Package metrics holds the Prometheus collectors of the occurrence engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ExpansionTruncated counts expansions cut short by the safety cap.
	// kind is "recurrence" or "span".
	ExpansionTruncated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "familyapp_expansion_truncated_total",
		Help: "Occurrence expansions stopped by the safety cap.",
	}, []string{"kind"})

	// CompletionToggles counts ledger toggles by resulting state.
	CompletionToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "familyapp_completion_toggles_total",
		Help: "Completion toggles by resulting state.",
	}, []string{"result"})

	// ScopeEdits counts scoped mutations of events.
	ScopeEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "familyapp_scope_edits_total",
		Help: "Event mutations by scope and operation.",
	}, []string{"scope", "op"})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ToggleResult is the label value for a toggle outcome.
func ToggleResult(completed bool) string {
	if completed {
		return "completed"
	}
	return "uncompleted"
}
