package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	jobsFinished  *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	cacheOutcomes *prometheus.CounterVec
	activeTenants prometheus.Gauge
}

// NewMetrics registers the processor metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchday_stats_jobs_finished_total",
			Help: "Stats job attempts by final status (completed, failed, requeued, stale_requeued, stale_failed)",
		}, []string{"status"}),
		stepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchday_stats_step_duration_seconds",
			Help:    "Duration of stats pipeline steps",
			Buckets: prometheus.DefBuckets,
		}, []string{"step", "status"}),
		cacheOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "matchday_cache_invalidations_total",
			Help: "Cache invalidation requests by outcome",
		}, []string{"outcome"}),
		activeTenants: f.NewGauge(prometheus.GaugeOpts{
			Name: "matchday_stats_active_tenants",
			Help: "Tenants whose queue is being drained right now",
		}),
	}
}
