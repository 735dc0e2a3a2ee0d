// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	discoveryPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lens_discovery_passes_total",
		Help: "Total discovery passes by kind",
	}, []string{"kind"})

	discoveryFindings = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lens_discovery_findings",
		Help:    "Findings per discovery pass by kind",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	}, []string{"kind"})

	discoveryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lens_discovery_latency_seconds",
		Help:    "Discovery pass latency by kind",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
	}, []string{"kind"})

	rulesLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lens_rules_load_errors_total",
		Help: "Total discovery rules load errors",
	})

	rulesLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lens_rules_load_duration_seconds",
		Help:    "Duration of discovery rules loading",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5},
	})
)
