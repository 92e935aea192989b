package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics surfaces the health signals the dashboard view deliberately keeps
// silent: clamped availability counts, dropped subscription cycles, and
// stale async results that were discarded instead of applied.
type Metrics struct {
	ClampedAvailability prometheus.Counter
	SubscriptionErrors  prometheus.Counter
	StaleLoadsDiscarded prometheus.Counter
	LastPushTimestamp   prometheus.Gauge
}

// NewMetrics registers the monitor metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ClampedAvailability: factory.NewCounter(prometheus.CounterOpts{
			Name: "parkmon_availability_clamped_total",
			Help: "Times a per-category availability count went negative and was clamped to zero.",
		}),
		SubscriptionErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "parkmon_subscription_errors_total",
			Help: "Occupancy subscription cycles that failed to fetch.",
		}),
		StaleLoadsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "parkmon_stale_loads_discarded_total",
			Help: "Async detail loads discarded because a newer request superseded them.",
		}),
		LastPushTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parkmon_last_push_timestamp_seconds",
			Help: "Unix time of the last applied occupancy push.",
		}),
	}
}
