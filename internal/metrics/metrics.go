package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IngestionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_ingestion_runs_total",
			Help: "Ingestion runs by outcome",
		},
		[]string{"outcome"},
	)

	IndicatorsUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fg_indicators_upserted_total",
			Help: "Indicators written by disposition",
		},
		[]string{"disposition"},
	)

	IngestionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fg_ingestion_duration_seconds",
			Help:    "Time spent per ingestion run",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"feed_type"},
	)

	FeedIndicators = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fg_feed_indicators",
			Help: "Indicator rows currently stored per feed",
		},
		[]string{"feed_id"},
	)
)
