// Package metrics exposes Prometheus collectors for the requisition lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "requisiciones",
		Name:      "status_transitions_total",
		Help:      "Committed requisition status transitions.",
	}, []string{"from", "to"})

	allocations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "requisiciones",
		Name:      "numbers_allocated_total",
		Help:      "Display and committee numbers handed out by the allocator.",
	}, []string{"kind"})

	supports = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "requisiciones",
		Name:      "supports_attached_total",
		Help:      "Support documents attached to requisitions.",
	})

	rejectedOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "requisiciones",
		Name:      "operations_rejected_total",
		Help:      "Lifecycle operations refused before any write.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(transitions, allocations, supports, rejectedOps)
}

// Transition counts a committed status change.
func Transition(from, to string) {
	transitions.WithLabelValues(from, to).Inc()
}

// Allocation counts a number handed out; kind is requisicion, partida or comite.
func Allocation(kind string) {
	allocations.WithLabelValues(kind).Inc()
}

// SupportAttached counts a stored support document.
func SupportAttached() {
	supports.Inc()
}

// Rejected counts an operation refused by validation, policy or state checks.
func Rejected(reason string) {
	rejectedOps.WithLabelValues(reason).Inc()
}
