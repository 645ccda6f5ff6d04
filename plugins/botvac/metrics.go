package botvac

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gobotvac_botvac_requests_total",
		Help: "Classified backend responses by service and outcome",
	}, []string{"service", "outcome"})
	transportFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gobotvac_botvac_transport_failures_total",
		Help: "Backend requests that failed before a response was classified",
	}, []string{"service"})
)

func observeOutcome(service string, kind OutcomeKind) {
	requestsTotal.WithLabelValues(service, kind.String()).Inc()
}

func observeTransportFailure(service string) {
	transportFailures.WithLabelValues(service).Inc()
}

// RequestCollectors returns the process-wide request counters.
func RequestCollectors() []prometheus.Collector {
	return []prometheus.Collector{requestsTotal, transportFailures}
}

// robotLister is satisfied by Manager.
type robotLister interface {
	Robots() []*Robot
}

// MetricsCollector exports the mirrored snapshot of every managed robot.
// It never calls the backend; the poller keeps snapshots fresh.
type MetricsCollector struct {
	robots robotLister

	charge       *prometheus.GaugeVec
	charging     *prometheus.GaugeVec
	docked       *prometheus.GaugeVec
	schedule     *prometheus.GaugeVec
	state        *prometheus.GaugeVec
	action       *prometheus.GaugeVec
	errorActive  *prometheus.GaugeVec
	refreshed    *prometheus.GaugeVec
	lastUpdated  *prometheus.GaugeVec
	robotsListed prometheus.Gauge
}

func NewMetricsCollector(robots robotLister) *MetricsCollector {
	labels := []string{"serial", "name"}
	return &MetricsCollector{
		robots: robots,
		charge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_charge_percent",
			Help: "Battery charge per robot",
		}, labels),
		charging: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_charging_bool",
			Help: "Robot charging (1=yes, 0=no)",
		}, labels),
		docked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_docked_bool",
			Help: "Robot on its base (1=yes, 0=no)",
		}, labels),
		schedule: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_schedule_enabled_bool",
			Help: "Cleaning schedule enabled (1=yes, 0=no)",
		}, labels),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_state",
			Help: "Robot state code (1=idle, 2=busy, 3=paused, 4=error)",
		}, labels),
		action: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_action",
			Help: "Robot action code",
		}, labels),
		errorActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_error_active_bool",
			Help: "Robot reports an error (1=yes, 0=no)",
		}, labels),
		refreshed: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_refreshed_bool",
			Help: "Robot state has been fetched at least once (1=yes, 0=no)",
		}, labels),
		lastUpdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_last_updated_timestamp_seconds",
			Help: "Last successful state response per robot (epoch seconds)",
		}, labels),
		robotsListed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gobotvac_botvac_robots",
			Help: "Robots listed for the account",
		}),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	c.charge.Describe(ch)
	c.charging.Describe(ch)
	c.docked.Describe(ch)
	c.schedule.Describe(ch)
	c.state.Describe(ch)
	c.action.Describe(ch)
	c.errorActive.Describe(ch)
	c.refreshed.Describe(ch)
	c.lastUpdated.Describe(ch)
	c.robotsListed.Describe(ch)
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	c.charge.Reset()
	c.charging.Reset()
	c.docked.Reset()
	c.schedule.Reset()
	c.state.Reset()
	c.action.Reset()
	c.errorActive.Reset()
	c.refreshed.Reset()
	c.lastUpdated.Reset()

	robots := c.robots.Robots()
	c.robotsListed.Set(float64(len(robots)))

	for _, robot := range robots {
		snap := robot.Snapshot()
		labels := prometheus.Labels{"serial": robot.Serial(), "name": robot.Name()}
		c.refreshed.With(labels).Set(boolToFloat(snap.Refreshed))
		if !snap.Refreshed {
			continue
		}
		c.charge.With(labels).Set(snap.Charge)
		c.charging.With(labels).Set(boolToFloat(snap.IsCharging))
		c.docked.With(labels).Set(boolToFloat(snap.IsDocked))
		c.schedule.With(labels).Set(boolToFloat(snap.IsScheduleEnabled))
		c.state.With(labels).Set(float64(snap.State))
		c.action.With(labels).Set(float64(snap.Action))
		c.errorActive.With(labels).Set(boolToFloat(snap.Error != ""))
		c.lastUpdated.With(labels).Set(float64(snap.UpdatedAt.Unix()))
	}

	c.collectAll(ch)
}

func (c *MetricsCollector) collectAll(ch chan<- prometheus.Metric) {
	c.charge.Collect(ch)
	c.charging.Collect(ch)
	c.docked.Collect(ch)
	c.schedule.Collect(ch)
	c.state.Collect(ch)
	c.action.Collect(ch)
	c.errorActive.Collect(ch)
	c.refreshed.Collect(ch)
	c.lastUpdated.Collect(ch)
	c.robotsListed.Collect(ch)
}

func boolToFloat(value bool) float64 {
	if value {
		return 1
	}
	return 0
}
