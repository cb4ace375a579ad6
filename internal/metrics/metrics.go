// Package metrics exposes the controller snapshot as Prometheus gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/pool-controller/internal/logic"
	"github.com/sweeney/pool-controller/internal/status"
)

var phases = []logic.Phase{
	logic.PhaseIdle,
	logic.PhasePriming,
	logic.PhaseOpening,
	logic.PhaseRunning,
	logic.PhaseClosing,
}

// Metrics holds the gauges and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	temperature   *prometheus.GaugeVec
	pumpOn        prometheus.Gauge
	valveOpen     prometheus.Gauge
	valveMoving   prometheus.Gauge
	override      prometheus.Gauge
	testPhase     *prometheus.GaugeVec
	runtimeToday  prometheus.Gauge
	sensorFault   prometheus.Gauge
	mqttConnected prometheus.Gauge
	uptime        prometheus.Gauge
}

// New registers the controller gauges on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_temperature_celsius",
			Help: "Last good probe reading",
		}, []string{"probe"}),
		pumpOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_pump_on",
			Help: "1 if the circulation pump was last observed on",
		}),
		valveOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_valve_open",
			Help: "1 if the diverter valve is believed open",
		}),
		valveMoving: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_valve_moving",
			Help: "1 while an open or close pulse is in progress",
		}),
		override: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_override_active",
			Help: "1 while the manual override window is open",
		}),
		testPhase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_heater_test_phase",
			Help: "1 for the current heater test phase",
		}, []string{"phase"}),
		runtimeToday: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_pump_runtime_today_seconds",
			Help: "Completed pump run time since local midnight",
		}),
		sensorFault: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_sensor_fault",
			Help: "1 while the last probe read failed",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_mqtt_connected",
			Help: "1 while the MQTT broker connection is up",
		}),
		uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pool_uptime_seconds",
			Help: "Seconds since the controller started",
		}),
	}
	registry.MustRegister(
		m.temperature, m.pumpOn, m.valveOpen, m.valveMoving, m.override,
		m.testPhase, m.runtimeToday, m.sensorFault, m.mqttConnected, m.uptime,
	)
	return m
}

// Observe copies a snapshot into the gauges.
func (m *Metrics) Observe(snap status.Snapshot) {
	st := snap.Controller
	m.temperature.WithLabelValues("pool").Set(float64(st.Reading.Pool))
	m.temperature.WithLabelValues("collector").Set(float64(st.Reading.Collector))
	m.pumpOn.Set(boolGauge(st.PumpOn))
	m.valveOpen.Set(boolGauge(st.Valve == logic.PositionOpen))
	m.valveMoving.Set(boolGauge(st.Motion != logic.MotionIdle && st.Motion != ""))
	m.override.Set(boolGauge(st.OverrideActive))
	for _, p := range phases {
		m.testPhase.WithLabelValues(string(p)).Set(boolGauge(st.TestPhase == p))
	}
	m.runtimeToday.Set(st.PumpRuntimeToday.Seconds())
	m.sensorFault.Set(boolGauge(st.SensorFault != ""))
	m.mqttConnected.Set(boolGauge(snap.MQTTConnected))
	m.uptime.Set(snap.Uptime().Seconds())
}

// Handler refreshes the gauges from tracker on every scrape.
func (m *Metrics) Handler(tracker *status.Tracker) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Observe(tracker.Snapshot())
		h.ServeHTTP(w, r)
	})
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
