package persistence

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the persistence state counters described by the status
// surface, mirrored into prometheus for scraping.
type Metrics struct {
	Queries           prometheus.Counter
	QueryErrors       prometheus.Counter
	HealthFailures    prometheus.Counter
	ReconnectAttempts prometheus.Counter
	PurgedRecords     prometheus.Counter
	Degraded          prometheus.Gauge
	LastHealthCheck   prometheus.Gauge
}

// NewMetrics registers the persistence collectors on reg. Pass
// prometheus.DefaultRegisterer in the service binary; tests use a private
// registry so parallel managers don't collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	factory := promauto.With(reg)

	return &Metrics{
		Queries: factory.NewCounter(prometheus.CounterOpts{
			Name: "growmies_db_queries_total",
			Help: "Ledger units of work executed against the store.",
		}),
		QueryErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "growmies_db_query_errors_total",
			Help: "Ledger units of work that failed at the store layer.",
		}),
		HealthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "growmies_db_health_failures_total",
			Help: "Background connectivity probes that failed.",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "growmies_db_reconnect_attempts_total",
			Help: "Connection attempts made, including startup and recovery.",
		}),
		PurgedRecords: factory.NewCounter(prometheus.CounterOpts{
			Name: "growmies_db_purged_records_total",
			Help: "Transaction rows removed by the retention sweep.",
		}),
		Degraded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "growmies_db_degraded",
			Help: "1 while the store is unreachable and stand-ins serve reads.",
		}),
		LastHealthCheck: factory.NewGauge(prometheus.GaugeOpts{
			Name: "growmies_db_last_health_check_timestamp_seconds",
			Help: "Unix time of the last successful connectivity probe.",
		}),
	}
}
