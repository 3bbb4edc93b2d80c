package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the monitor execution engine and alert lifecycle
// manager.
var (
	// Monitor run metrics
	MonitorRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_monitor_runs_total",
			Help: "Total number of monitor runs executed",
		},
		[]string{"monitor_name", "status"},
	)

	MonitorRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertengine_monitor_run_duration_seconds",
			Help:    "Time spent executing a single monitor run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"monitor_name"},
	)

	// Trigger outcome metrics
	TriggersFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_triggers_fired_total",
			Help: "Total number of triggers that fired",
		},
		[]string{"monitor_name", "trigger_name"},
	)

	TriggersThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_triggers_throttled_total",
			Help: "Total number of trigger evaluations skipped due to throttling",
		},
		[]string{"monitor_name", "trigger_name"},
	)

	TriggerEvaluationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alertengine_trigger_evaluation_duration_seconds",
			Help:    "Time spent evaluating a single trigger, including query execution",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"monitor_name", "trigger_name"},
	)

	// Alert persistence metrics
	AlertsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_written_total",
			Help: "Total number of alert documents written to the active collection",
		},
		[]string{"monitor_name", "severity"},
	)

	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_notifications_sent_total",
			Help: "Total number of notification dispatch attempts",
		},
		[]string{"monitor_name", "status"},
	)

	// Sweeper metrics
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertengine_sweep_duration_seconds",
			Help:    "Time spent running one alert lifecycle sweep pass",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
	)

	AlertsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_expired_total",
			Help: "Total number of alerts expired by the lifecycle sweeper",
		},
	)

	AlertsArchivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_archived_total",
			Help: "Total number of alerts successfully copied to history before deletion",
		},
	)

	AlertsArchiveFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "alertengine_alerts_archive_failures_total",
			Help: "Total number of alerts that failed to archive and were left active",
		},
	)

	SweeperLeader = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_sweeper_is_leader",
			Help: "1 if this process currently holds the sweeper schedule, 0 otherwise",
		},
	)

	// Query executor metrics
	QueryExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertengine_query_executions_total",
			Help: "Total number of PQL query executions issued by the engine",
		},
		[]string{"status"},
	)

	QueryExecutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "alertengine_query_execution_duration_seconds",
			Help:    "Time spent executing a single PQL query against the data cluster",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)

	QueryBreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "alertengine_query_breaker_open",
			Help: "1 while the PQL executor's circuit breaker is open, 0 otherwise",
		},
	)
)
