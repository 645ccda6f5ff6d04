package oauth

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobotvac_oauth_refresh_total",
			Help: "Access token refreshes by result",
		},
		[]string{"provider", "result"},
	)
	tokenExpiry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gobotvac_oauth_token_expiry_timestamp_seconds",
			Help: "Expiry of the current access token, 0 after a failed refresh",
		},
		[]string{"provider"},
	)
	rotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobotvac_oauth_refresh_token_rotations_total",
			Help: "Rotated refresh tokens by persistence result",
		},
		[]string{"provider", "result"},
	)
	scopeMismatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gobotvac_oauth_scope_mismatch_total",
			Help: "Persisted states rejected for a different scope",
		},
		[]string{"provider"},
	)
)

func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{refreshTotal, tokenExpiry, rotationsTotal, scopeMismatch}
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
