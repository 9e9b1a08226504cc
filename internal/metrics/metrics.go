// Package metrics holds the Prometheus collectors exported by the triage agent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	recallCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_recall_total",
			Help: "Fix lookups by outcome: hit reuses a remembered fix, miss generates a new one",
		},
		[]string{"outcome"},
	)

	memoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "triage_memory_entries",
			Help: "Number of entries held by the file-backed fix memory",
		},
	)

	memoryRecoveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_memory_recoveries_total",
			Help: "Times the fix memory was unreadable at startup and started empty",
		},
	)

	memoryWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "triage_memory_write_failures_total",
			Help: "Generated fixes that could not be written to the fix memory",
		},
	)

	bugsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_bugs_processed_total",
			Help: "Bugs run through the triage pipeline, by result",
		},
		[]string{"result"},
	)

	webhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_webhook_requests_total",
			Help: "Tracker webhook deliveries, by handling status",
		},
		[]string{"status"},
	)
)

// RecordRecall counts a fix lookup.
func RecordRecall(hit bool) {
	if hit {
		recallCounter.WithLabelValues("hit").Inc()
		return
	}
	recallCounter.WithLabelValues("miss").Inc()
}

// SetMemoryEntries reports the current size of the fix memory.
func SetMemoryEntries(n int) {
	memoryEntries.Set(float64(n))
}

// RecordMemoryRecovery counts a fix memory that was reset at load time.
func RecordMemoryRecovery() {
	memoryRecoveries.Inc()
}

// RecordMemoryWriteFailure counts a fix that was returned but not remembered.
func RecordMemoryWriteFailure() {
	memoryWriteFailures.Inc()
}

// RecordBug counts a bug run; result is "processed", "analysis_failed" or "review_failed".
func RecordBug(result string) {
	bugsProcessed.WithLabelValues(result).Inc()
}

// RecordWebhook counts a webhook delivery by status.
func RecordWebhook(status string) {
	webhookRequests.WithLabelValues(status).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
