// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "schemaparser"

var (
	DocumentsObserved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "documents_observed_total",
		Help:      "Documents folded into a collection schema.",
	}, []string{"collection"})

	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decode_errors_total",
		Help:      "Inputs rejected by a decoder, by input format.",
	}, []string{"format"})

	FinalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "finalize_duration_seconds",
		Help:      "Time spent finalizing a collection schema.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
	})

	Collections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "collections",
		Help:      "Collections currently held in memory.",
	})

	Exchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_exchanges_total",
		Help:      "Captured HTTP request/response pairs, by outcome.",
	}, []string{"outcome"})
)
