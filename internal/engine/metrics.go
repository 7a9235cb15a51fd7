package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishsync_operations_total",
			Help: "Wishlist operations by type and result.",
		},
		[]string{"operation", "result"},
	)

	rollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishsync_rollbacks_total",
			Help: "Optimistic mutations reverted after an upstream failure.",
		},
	)

	queueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wishsync_queue_depth",
			Help: "Operations waiting for the per-user mutation slot.",
		},
	)

	queueRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishsync_queue_retries_total",
			Help: "Queued operation retry attempts.",
		},
	)

	queueAbandonedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishsync_queue_abandoned_total",
			Help: "Queued operations moved to the failed list after exhausting retries.",
		},
	)

	syncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wishsync_syncs_total",
			Help: "Full wishlist synchronizations by result.",
		},
		[]string{"result"},
	)

	syncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wishsync_sync_duration_seconds",
			Help:    "Duration of full wishlist synchronizations.",
			Buckets: prometheus.DefBuckets,
		},
	)

	moveFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wishsync_move_legacy_fallbacks_total",
			Help: "Move-to-cart operations that used the legacy two-call flow.",
		},
	)
)
