// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(activationOutcomesTotal, activationOpDuration, storeErrorsTotal)
}

var (
	activationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "activation_outcomes_total",
			Help: "Activation operations by op and outcome (activated, already_active, expired, ...).",
		},
		[]string{"op", "outcome"},
	)

	activationOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "activation_op_duration_seconds",
			Help:    "Latency of activation operations as seen by the HTTP layer.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op"},
	)

	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_errors_total",
			Help: "Record store failures per activation op.",
		},
		[]string{"op"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncActivationOutcome(op, outcome string) {
	activationOutcomesTotal.WithLabelValues(norm(op), norm(outcome)).Inc()
}

func ObserveActivationDuration(op string, d time.Duration) {
	activationOpDuration.WithLabelValues(norm(op)).Observe(d.Seconds())
}

func IncStoreError(op string) {
	storeErrorsTotal.WithLabelValues(norm(op)).Inc()
}
