package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxydesk_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proxydesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxydesk_claims_total",
			Help: "Total number of claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	ProxiesFinalizedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proxydesk_proxies_finalized_total",
			Help: "Total number of proxy records finalized (marked used and removed).",
		},
	)

	CooldownsArmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proxydesk_cooldowns_armed_total",
			Help: "Total number of cooldown periods armed after quota exhaustion.",
		},
	)

	StagesReleasedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proxydesk_stages_released_total",
			Help: "Total number of expired claim reservations released by the janitor.",
		},
	)

	BatchLimitUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proxydesk_batch_limit_updates_total",
			Help: "Total number of per-user limit updates in batch edits.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ClaimsTotal,
		ProxiesFinalizedTotal,
		CooldownsArmedTotal,
		StagesReleasedTotal,
		BatchLimitUpdatesTotal,
	)
}
