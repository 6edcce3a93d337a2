package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UsersSynced counts upserted chat users by path (realtime, batch, full)
	UsersSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_users_synced_total",
			Help: "Total number of users synced into the chat store",
		},
		[]string{"path"},
	)

	// SyncErrors counts classified sync failures
	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsync_errors_total",
			Help: "Total number of sync errors by classification",
		},
		[]string{"error_type"},
	)

	// BatchPassDuration tracks batch pass duration
	BatchPassDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatsync_batch_pass_duration_seconds",
			Help:    "Batch reconciliation pass duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BatchPassesSkipped counts scheduled passes skipped because the
	// previous pass was still running
	BatchPassesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsync_batch_passes_skipped_total",
			Help: "Scheduled batch passes skipped due to an in-flight pass",
		},
	)

	// ListenerState exposes the change feed state machine
	// (0 disconnected, 1 connecting, 2 listening, 3 reconnecting, 4 given up)
	ListenerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_listener_state",
			Help: "Current change feed listener state",
		},
	)

	// ConsecutiveFailures tracks the consecutive batch failure count
	ConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_consecutive_failures",
			Help: "Consecutive failed batch passes",
		},
	)

	// LastSuccessfulSync exposes the unix time of the last successful pass
	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsync_last_successful_sync_timestamp_seconds",
			Help: "Unix timestamp of the last successful batch pass",
		},
	)
)
