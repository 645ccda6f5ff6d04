package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsRegistry builds a registry from plugin collectors plus any extra
// process-wide collectors.
func MetricsRegistry(plugins []Plugin, extra ...prometheus.Collector) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(newHealthCollector(plugins))

	for _, plugin := range plugins {
		for _, collector := range plugin.Collectors() {
			registry.MustRegister(collector)
		}
	}
	for _, collector := range extra {
		registry.MustRegister(collector)
	}
	return registry
}

// healthCollector reports plugin health at scrape time.
type healthCollector struct {
	plugins []Plugin
	healthy *prometheus.GaugeVec
}

func newHealthCollector(plugins []Plugin) *healthCollector {
	return &healthCollector{
		plugins: plugins,
		healthy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_plugin_healthy",
			Help: "Plugin health (1=healthy, 0=degraded or error)",
		}, []string{"plugin"}),
	}
}

func (c *healthCollector) Describe(ch chan<- *prometheus.Desc) {
	c.healthy.Describe(ch)
}

func (c *healthCollector) Collect(ch chan<- prometheus.Metric) {
	c.healthy.Reset()
	for _, plugin := range c.plugins {
		value := 0.0
		if plugin.Health() == HealthHealthy {
			value = 1
		}
		c.healthy.WithLabelValues(plugin.ID()).Set(value)
	}
	c.healthy.Collect(ch)
}
