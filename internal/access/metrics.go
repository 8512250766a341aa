// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AssetDesk Contributors

package access

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision results used as metric label values.
const (
	resultAllow  = "allow"
	resultDeny   = "deny"
	resultBypass = "superuser_bypass"
)

var (
	// decisionsTotal counts evaluator decisions by module and result.
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdesk_access_decisions_total",
		Help: "Total number of access decisions by module and result",
	}, []string{"module", "result"})

	// storeErrorsTotal counts override store failures by operation.
	storeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "assetdesk_access_store_errors_total",
		Help: "Total number of permission store failures by operation",
	}, []string{"operation"})

	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "assetdesk_access_resolve_duration_seconds",
		Help:    "Histogram of effective permission resolution latency in seconds, including the store load",
		Buckets: prometheus.DefBuckets,
	})
)

// recordDecision increments the decision counter. Unknown modules are folded
// into a single label value to bound cardinality.
func recordDecision(schema *Schema, m Module, result string) {
	label := string(m)
	if schema.ListActions(m) == nil {
		label = "unknown"
	}
	decisionsTotal.WithLabelValues(label, result).Inc()
}

func recordResolve(d time.Duration) {
	resolveDuration.Observe(d.Seconds())
}
