// Package metrics exposes the Prometheus collectors for billing and generation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "mediagen"
)

var (
	CreditsDeductedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "deducted_total",
			Help:      "Credits charged for generations",
		},
		[]string{"model"},
	)

	CreditsRefundedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "refunded_total",
			Help:      "Credits returned after failed generations",
		},
	)

	InsufficientCreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "insufficient_total",
			Help:      "Requests rejected for insufficient balance",
		},
		[]string{"model"},
	)

	DailyResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "credits",
			Name:      "daily_resets_total",
			Help:      "Free tier balances reset to the daily allotment",
		},
		[]string{"trigger"},
	)

	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "total",
			Help:      "Finished generations by model and terminal status",
		},
		[]string{"model", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time from charge to terminal status",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"model"},
	)

	PollAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "polling",
			Name:      "attempts",
			Help:      "Status queries issued per polled job",
			Buckets:   []float64{1, 2, 5, 10, 15, 20, 30, 45, 60},
		},
		[]string{"provider", "outcome"},
	)

	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Storage backend operations",
		},
		[]string{"backend", "operation", "result"},
	)
)
