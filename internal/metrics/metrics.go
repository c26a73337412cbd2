package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters and histograms, partitioned by network.

var (
	// Scheduler
	SchedulerChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "scheduler",
		Name:      "checks_total",
		Help:      "Total head checks performed by the scheduler",
	}, []string{"network"})

	SchedulerChecksSkippedBusy = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "scheduler",
		Name:      "checks_skipped_busy_total",
		Help:      "Total head checks skipped because a cycle was already in flight",
	}, []string{"network"})

	SchedulerHeadHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "scheduler",
		Name:      "head_height",
		Help:      "Latest chain head height observed",
	}, []string{"network"})

	SchedulerWatermarkHeight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "scheduler",
		Name:      "watermark_height",
		Help:      "Highest block height fully processed",
	}, []string{"network"})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "scheduler",
		Name:      "cycles_total",
		Help:      "Total processing cycles by outcome",
	}, []string{"network", "status"})

	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zkusd",
		Subsystem: "scheduler",
		Name:      "cycle_duration_seconds",
		Help:      "Full processing cycle duration (collect, prove, reconcile)",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"network"})

	// Reconciler
	ReconcilerEventsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "reconciler",
		Name:      "events_fetched_total",
		Help:      "Total events fetched from the archive per pass",
	}, []string{"network"})

	ReconcilerEventsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "reconciler",
		Name:      "events_inserted_total",
		Help:      "Total events newly recorded in the ledger",
	}, []string{"network"})

	ReconcilerEventsDeduplicated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "reconciler",
		Name:      "events_deduplicated_total",
		Help:      "Total events skipped as already recorded",
	}, []string{"network"})

	ReconcilerPassDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zkusd",
		Subsystem: "reconciler",
		Name:      "pass_duration_seconds",
		Help:      "Reconciliation pass duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"network"})

	// Reducer
	ReducerEventsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "reducer",
		Name:      "events_applied_total",
		Help:      "Total vault events applied to aggregates",
	}, []string{"network", "event_type"})

	ReducerEventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "reducer",
		Name:      "events_skipped_total",
		Help:      "Total vault events skipped without touching state",
	}, []string{"network", "reason"})

	ReducerVaultsTracked = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "reducer",
		Name:      "vaults_tracked",
		Help:      "Current number of vault aggregates in the store",
	}, []string{"network"})

	// Oracle collector
	CollectorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "collector",
		Name:      "runs_total",
		Help:      "Total submission collection attempts by outcome",
	}, []string{"network", "status"})

	CollectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zkusd",
		Subsystem: "collector",
		Name:      "duration_seconds",
		Help:      "Submission collection duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"network"})

	// Prover
	ProverComputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zkusd",
		Subsystem: "prover",
		Name:      "compute_duration_seconds",
		Help:      "Proof computation duration including sidecar round trip",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"network"})

	ProverComputeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "prover",
		Name:      "compute_errors_total",
		Help:      "Total proof computation failures",
	}, []string{"network"})

	ProverPersistErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "prover",
		Name:      "persist_errors_total",
		Help:      "Total proof persistence failures after successful computation",
	}, []string{"network"})

	ProofsPersistedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "prover",
		Name:      "proofs_persisted_total",
		Help:      "Total proof records written",
	}, []string{"network"})

	// Worker
	WorkerFatalExitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "worker",
		Name:      "fatal_exits_total",
		Help:      "Total fatal worker terminations (timeout or unexpected exit)",
	}, []string{"network", "reason"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	DBPoolWaitCount = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "postgres",
		Name:      "db_pool_wait_count",
		Help:      "Cumulative count of waits for PostgreSQL connections from pool",
	})

	// Vault cache
	VaultCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "cache",
		Name:      "vault_hits_total",
		Help:      "Total vault cache hits",
	}, []string{"network"})

	VaultCacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "cache",
		Name:      "vault_misses_total",
		Help:      "Total vault cache misses",
	}, []string{"network"})

	// RPC rate limiter
	RPCRateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "rpc",
		Name:      "rate_limit_waits_total",
		Help:      "Total times RPC calls waited for rate limiter",
	}, []string{"endpoint"})

	RPCCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "rpc",
		Name:      "calls_total",
		Help:      "Total outbound RPC calls by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	// Circuit breaker
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "zkusd",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"name"})

	// Cycle feed
	FeedPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "feed",
		Name:      "published_total",
		Help:      "Total cycle records published to the feed",
	}, []string{"network"})

	FeedPublishErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "feed",
		Name:      "publish_errors_total",
		Help:      "Total cycle feed publish failures",
	}, []string{"network"})

	// Integrity audit
	AuditRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "audit",
		Name:      "runs_total",
		Help:      "Total integrity audit runs by outcome",
	}, []string{"network", "status"})

	AuditMismatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "audit",
		Name:      "mismatches_total",
		Help:      "Total vaults whose stored state diverged from the replayed ledger",
	}, []string{"network"})

	AuditErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "audit",
		Name:      "errors_total",
		Help:      "Total per-vault audit errors (lookup or replay failures)",
	}, []string{"network"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent",
	}, []string{"channel", "alert_type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zkusd",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts skipped due to cooldown",
	}, []string{"channel", "alert_type"})
)
