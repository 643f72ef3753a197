package yakushima

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics collects the prometheus instrumentation wired into the core per
// SPEC_FULL.md's DOMAIN STACK section. Registration is keyed off a
// caller-supplied registerer so embedding applications choose the registry;
// without one the collectors are created but registered nowhere.
type metrics struct {
	activeSessions prometheus.Gauge
	globalEpoch    prometheus.Gauge
	gcReclaimed    prometheus.Counter
	splits         prometheus.Counter
	storages       prometheus.Gauge
}

// newMetrics registers the core's gauges and counters against reg. Passing
// nil creates them without registering them with any registerer.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "yakushima",
			Name:      "active_sessions",
			Help:      "Number of currently entered sessions.",
		}),
		globalEpoch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "yakushima",
			Name:      "global_epoch",
			Help:      "Current value of the global epoch counter.",
		}),
		gcReclaimed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "yakushima",
			Name:      "gc_reclaimed_total",
			Help:      "Total number of retired values and nodes reclaimed by the epoch GC sweep.",
		}),
		splits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "yakushima",
			Name:      "node_splits_total",
			Help:      "Total number of border and interior node splits performed.",
		}),
		storages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "yakushima",
			Name:      "storages",
			Help:      "Number of storages currently registered.",
		}),
	}
}
