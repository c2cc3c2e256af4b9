package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// tilesProcessed counts tiles completed by the gap rule.
	tilesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "nogaps",
		Name:      "tiles_processed_total",
		Help:      "Total tiles completed by the gap rule",
	})

	// gapsReported counts reported gaps.
	// Labels: code (issue code)
	gapsReported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nogaps",
		Name:      "gaps_reported_total",
		Help:      "Total gaps reported by issue code",
	}, []string{"code"})

	// runsTotal counts gap check runs.
	// Labels: result (ok, config_error, canceled, error)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nogaps",
		Name:      "runs_total",
		Help:      "Total gap check runs by result",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "nogaps",
		Name:      "run_duration_seconds",
		Help:      "Duration of gap check runs in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)
