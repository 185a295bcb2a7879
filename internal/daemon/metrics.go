package daemon

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppastorf/doctor-who-sounds/internal/sound"
)

const namespace = "doctor_who_sounds"

// Outcomes recorded for connections that never reach the sound pipeline.
const (
	outcomeEmpty     = "empty"
	outcomeReadError = "read_error"
	outcomeNotText   = "not_utf8"
)

// Metrics live in a private registry and are only ever written to a local
// textfile; the daemon opens no network listener.
type Metrics struct {
	registry    *prometheus.Registry
	connections prometheus.Counter
	payloads    *prometheus.CounterVec
	launches    *prometheus.CounterVec
	inFlight    prometheus.Gauge
	startTime   prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted on the daemon socket.",
		}),
		payloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payloads_total",
			Help:      "Payloads handled, by outcome.",
		}, []string{"outcome"}),
		launches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "player_launches_total",
			Help:      "Player processes started, by player binary.",
		}, []string{"player"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_in_flight",
			Help:      "Connection workers currently running.",
		}),
		startTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "start_time_seconds",
			Help:      "Unix time the daemon started serving.",
		}),
	}
	m.registry.MustRegister(m.connections, m.payloads, m.launches, m.inFlight, m.startTime)
	return m
}

func (m *Metrics) observe(res sound.Result) {
	m.payloads.WithLabelValues(string(res.Outcome)).Inc()
	if res.Outcome == sound.Played {
		m.launches.WithLabelValues(res.Player).Inc()
	}
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
