// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package telemetry exposes the proxy's Prometheus metrics: how many
// queries and upserts have been handled, how much overfetch-and-rerank is
// costing in returned-candidate volume, and how often returned matches are
// dropped for missing SAP parameters (spec.md §7, MissingParameters).
// Grounded in the eager-registration, global-only-metrics style of
// internal/ratelimiter/telemetry/churn/prom_counters.go.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_queries_total",
		Help: "Total POST /query requests handled.",
	})
	PassthroughQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_passthrough_queries_total",
		Help: "Total POST /query requests that were id-based passthrough (no SAP transform).",
	})
	UpsertsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_upserts_total",
		Help: "Total POST /vectors/upsert requests handled.",
	})
	UpsertedVectorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_upserted_vectors_total",
		Help: "Total individual vectors SAP-encrypted and forwarded via upsert.",
	})
	SetupTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_setup_total",
		Help: "Total POST /blyss/setup calls that committed a new (upstream, beta) snapshot.",
	})
	MissingParametersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_missing_parameters_total",
		Help: "Total upstream matches excluded from a query response for lacking nonce_b64 or beta.",
	})
	UpstreamErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sapproxy_upstream_errors_total",
		Help: "Total non-2xx responses observed from the upstream backend.",
	})
	OverfetchMatches = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sapproxy_overfetch_matches",
		Help:    "Number of cipher-space matches returned by the backend before local rerank and truncation.",
		Buckets: []float64{1, 3, 9, 27, 81, 243, 729},
	})
	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sapproxy_query_duration_seconds",
		Help:    "End-to-end latency of POST /query, including the upstream round trip.",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		PassthroughQueriesTotal,
		UpsertsTotal,
		UpsertedVectorsTotal,
		SetupTotal,
		MissingParametersTotal,
		UpstreamErrorsTotal,
		OverfetchMatches,
		QueryDuration,
	)
}

// ObserveQueryDuration records the wall-clock duration of a /query request
// measured from start.
func ObserveQueryDuration(start time.Time) {
	QueryDuration.Observe(time.Since(start).Seconds())
}

// Handler returns the standalone Prometheus scrape handler, used when the
// proxy is configured to expose /metrics on its own listener
// (spec.md §2's ambient "Metrics" addition; the teacher's
// churn.startMetricsEndpoint does the same thing with its own ServeMux).
func Handler() http.Handler {
	return promhttp.Handler()
}
