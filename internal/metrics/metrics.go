package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hush_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hush_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	KeysRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hush_public_keys_registered_total",
			Help: "Total identity public keys published",
		},
	)

	MessagesSaved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hush_messages_saved_total",
			Help: "Total envelopes persisted to the ledger",
		},
		[]string{"kind"},
	)

	MessagesPatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hush_messages_patched_total",
			Help: "Total ledger status updates",
		},
	)

	ClaimStatusWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hush_claim_status_writes_total",
			Help: "Total stealth claim status transitions recorded",
		},
		[]string{"status"},
	)

	SessionsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hush_wallet_sessions_issued_total",
			Help: "Total wallet sessions issued",
		},
	)

	IdentityBackupWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hush_identity_backup_writes_total",
			Help: "Total encrypted identity backups stored",
		},
	)

	// Infrastructure metrics
	RedisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hush_redis_latency_seconds",
			Help:    "Redis operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05},
		},
	)

	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hush_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
