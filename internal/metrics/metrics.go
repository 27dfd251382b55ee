// Package metrics exposes Prometheus instruments for cart mutations and
// reconciliation passes. A nil *Cart is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoop    = "noop"
)

// Cart records metadata for cart operations.
type Cart struct {
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	reconcileRuns    *prometheus.CounterVec
	reconcileLatency prometheus.Histogram
	pendingDiff      prometheus.Gauge
}

// NewCart registers the cart metrics on the provided registerer.
func NewCart(reg prometheus.Registerer) *Cart {
	if reg == nil {
		return &Cart{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Cart mutations by operation and outcome.",
	}, []string{"operation", "outcome"})
	mutationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_cart_mutation_duration_seconds",
		Help:    "Duration of remote cart mutations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reconcileRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_reconcile_total",
		Help: "Reconciliation passes by outcome.",
	}, []string{"outcome"})
	reconcileLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "storefront_cart_reconcile_duration_seconds",
		Help:    "Duration of reconciliation passes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	pendingDiff := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "storefront_cart_pending_diff_items",
		Help: "Diff entries waiting for acknowledgement.",
	})
	reg.MustRegister(mutations, mutationDuration, reconcileRuns, reconcileLatency, pendingDiff)
	return &Cart{
		mutations:        mutations,
		mutationDuration: mutationDuration,
		reconcileRuns:    reconcileRuns,
		reconcileLatency: reconcileLatency,
		pendingDiff:      pendingDiff,
	}
}

// ObserveMutation records one mutation attempt.
func (c *Cart) ObserveMutation(operation, outcome string, duration time.Duration) {
	if c == nil || c.mutations == nil {
		return
	}
	op := normalizeLabel(operation)
	c.mutations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	if outcome != OutcomeNoop {
		c.mutationDuration.WithLabelValues(op).Observe(duration.Seconds())
	}
}

// ObserveReconcile records one reconciliation pass.
func (c *Cart) ObserveReconcile(outcome string, duration time.Duration) {
	if c == nil || c.reconcileRuns == nil {
		return
	}
	c.reconcileRuns.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.reconcileLatency.Observe(duration.Seconds())
}

// SetPendingDiff records the size of the diff awaiting acknowledgement.
func (c *Cart) SetPendingDiff(n int) {
	if c == nil || c.pendingDiff == nil {
		return
	}
	c.pendingDiff.Set(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
