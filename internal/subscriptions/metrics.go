package subscriptions

import (
	"time"

	"github.com/bissquit/grocer/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "scheduler",
			Name:      "subscriptions_total",
			Help:      "Due subscriptions processed by outcome (claimed, lost, ordered, skipped, failed)",
		},
		[]string{"outcome"},
	)

	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metrics.Namespace,
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Time to process one scheduler tick",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	tickErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "scheduler",
			Name:      "tick_errors_total",
			Help:      "Ticks that ended early because due subscriptions could not be loaded",
		},
	)
)

// recordTick exports the outcome of a finished tick.
func recordTick(result TickResult, duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
	if result.Err != nil {
		tickErrors.Inc()
		return
	}
	tickOutcomes.WithLabelValues("claimed").Add(float64(result.Claimed))
	tickOutcomes.WithLabelValues("lost").Add(float64(result.Lost))
	tickOutcomes.WithLabelValues("ordered").Add(float64(result.OrdersCreated))
	tickOutcomes.WithLabelValues("skipped").Add(float64(result.Skipped))
	tickOutcomes.WithLabelValues("failed").Add(float64(result.Failed))
}
