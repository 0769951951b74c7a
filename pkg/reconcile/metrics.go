// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"github.com/LeeDigitalWorks/ensure-buckets/pkg/debug"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var factory = promauto.With(debug.Registry())

var (
	// ResultsTotal counts per-bucket outcomes
	ResultsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ensure_buckets",
			Name:      "results_total",
			Help:      "Total number of desired buckets by reconciliation outcome",
		},
		[]string{"outcome"},
	)

	// ListErrorsTotal counts failed bucket listings
	ListErrorsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ensure_buckets",
			Name:      "list_errors_total",
			Help:      "Total number of failed bucket listings",
		},
	)

	// RunDuration tracks how long a reconciliation pass took
	RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ensure_buckets",
			Name:      "run_duration_seconds",
			Help:      "Duration of reconciliation passes",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	// LastRunTimestamp is set when a pass completes
	LastRunTimestamp = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ensure_buckets",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed reconciliation pass",
		},
	)
)
