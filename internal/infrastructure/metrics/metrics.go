// Package metrics holds the gateway's domain Prometheus collectors.
// HTTP request metrics live in the transport middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TokensRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_tokens_recorded_total",
			Help: "Tokens added to the daily quota counter",
		},
		[]string{"source"},
	)

	QuotaRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_quota_rejections_total",
			Help: "Chat requests rejected because the daily token budget was spent",
		},
	)

	QuotaStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_quota_store_errors_total",
			Help: "Quota counter reads/writes that failed and were absorbed",
		},
		[]string{"op"},
	)

	QuotaCorruptCounters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_quota_corrupt_counters_total",
			Help: "Quota counter reads that found a non-integer value and used zero",
		},
	)

	UpstreamRelays = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_upstream_relays_total",
			Help: "Chat requests relayed upstream, by outcome",
		},
		[]string{"outcome"},
	)

	UsageUnparsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_usage_unparsed_total",
			Help: "Relayed responses whose token usage could not be read (counted as zero)",
		},
	)

	LinksCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_links_created_total",
			Help: "Negotiation links stored",
		},
		[]string{"intro"},
	)

	IntroFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_intro_failures_total",
			Help: "Intro precompute calls that failed",
		},
	)
)
