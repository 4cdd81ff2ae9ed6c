package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sd",
			Name:      "generations_total",
			Help:      "Image generations by initiator and terminal state",
		},
		[]string{"initiator", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sd",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of one generation run in seconds",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 60, 120, 300},
		},
		[]string{"initiator"},
	)

	SwipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sd",
			Name:      "swipes_total",
			Help:      "Image swipes by direction",
		},
		[]string{"direction"},
	)

	OptionFetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sd",
			Name:      "option_fetch_failures_total",
			Help:      "Backend option list fetches that fell back to a default list",
		},
		[]string{"option"},
	)
)

func RecordGeneration(initiator, outcome string, started time.Time) {
	GenerationsTotal.WithLabelValues(initiator, outcome).Inc()
	GenerationDuration.WithLabelValues(initiator).Observe(time.Since(started).Seconds())
}

func RecordSwipe(direction string) {
	SwipesTotal.WithLabelValues(direction).Inc()
}

func RecordOptionFetchFailure(option string) {
	OptionFetchFailuresTotal.WithLabelValues(option).Inc()
}
