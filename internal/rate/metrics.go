package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	blockedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobotvac_rate_limit_blocked_total",
			Help: "Requests refused locally by the rate-limit guard",
		},
		[]string{"provider", "reason"},
	)
	retryAfterGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gobotvac_rate_limit_retry_after_seconds",
			Help: "Retry-After seconds last announced by the provider",
		},
		[]string{"provider"},
	)
	lastStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gobotvac_rate_limit_last_status_code",
			Help: "Last HTTP status code observed by the rate-limit wrapper",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors exposes shared rate-limit collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		blockedCounter,
		retryAfterGauge,
		lastStatusGauge,
	}
}
