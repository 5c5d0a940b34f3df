package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// VehicleCollector counts what the simulated vehicle does with updates.
type VehicleCollector struct {
	gatherer prometheus.Gatherer

	Updates   *prometheus.CounterVec
	Instances *prometheus.GaugeVec
	Links     prometheus.Gauge
}

// NewVehicleCollector registers the vehicle metrics against reg, defaulting
// to the global registry when nil.
func NewVehicleCollector(reg prometheus.Registerer) (*VehicleCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	updates, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pathplanner_vehicle_updates_total",
		Help: "Updates received by the vehicle, labeled by object and outcome.",
	}, []string{"object", "outcome"}), "pathplanner_vehicle_updates_total")
	if err != nil {
		return nil, err
	}
	instances, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pathplanner_vehicle_instances",
		Help: "Object instances held by the vehicle.",
	}, []string{"object"}), "pathplanner_vehicle_instances")
	if err != nil {
		return nil, err
	}
	links := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pathplanner_vehicle_links",
		Help: "Open planner connections.",
	})
	if err := reg.Register(links); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		if links, ok = are.ExistingCollector.(prometheus.Gauge); !ok {
			return nil, err
		}
	}
	return &VehicleCollector{gatherer: gatherer, Updates: updates, Instances: instances, Links: links}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *VehicleCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *VehicleCollector) ObserveUpdate(object, outcome string) {
	if c == nil {
		return
	}
	c.Updates.WithLabelValues(object, outcome).Inc()
}

func (c *VehicleCollector) SetInstances(object string, n int) {
	if c == nil {
		return
	}
	c.Instances.WithLabelValues(object).Set(float64(n))
}

func (c *VehicleCollector) LinkOpened() {
	if c != nil {
		c.Links.Inc()
	}
}

func (c *VehicleCollector) LinkClosed() {
	if c != nil {
		c.Links.Dec()
	}
}
