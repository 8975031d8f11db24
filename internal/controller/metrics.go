package controller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the controller's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	commands *prometheus.CounterVec
	spawns   prometheus.Counter
	stopWait prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "radiobrainz_commands_total",
				Help: "Commands executed, by command name and result.",
			},
			[]string{"command", "result"},
		),
		spawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "radiobrainz_player_spawns_total",
			Help: "Player processes started successfully.",
		}),
		stopWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "radiobrainz_stop_wait_seconds",
			Help:    "Time spent stopping the player and waiting for it to exit.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 15},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.commands, m.spawns, m.stopWait)
	}
	return m
}

func (m *Metrics) observeCommand(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) observeSpawn() {
	if m == nil {
		return
	}
	m.spawns.Inc()
}

func (m *Metrics) observeStopWait(d time.Duration) {
	if m == nil {
		return
	}
	m.stopWait.Observe(d.Seconds())
}
