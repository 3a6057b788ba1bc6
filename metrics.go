package stagepool

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus collectors for a pool, or for a whole chain of
// pools sharing the one instance.
type Metrics struct {
	ItemsDispatched prometheus.Counter
	ItemsDropped    prometheus.Counter
	PanicsRecovered prometheus.Counter
	FinishForwarded prometheus.Counter
	ActiveWorkers   prometheus.Gauge
}

// NewMetrics creates collectors and registers them with the default
// registry.
func NewMetrics(namespace, subsystem string) *Metrics {
	return NewMetricsOn(prometheus.DefaultRegisterer, namespace, subsystem)
}

// NewMetricsOn creates collectors and registers them with reg.
func NewMetricsOn(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	m := &Metrics{
		ItemsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_dispatched_total",
			Help:      "Total number of items handed to a worker",
		}),
		ItemsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "items_dropped_total",
			Help:      "Total number of items dropped during shutdown",
		}),
		PanicsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "panics_recovered_total",
			Help:      "Total number of work function panics recovered",
		}),
		FinishForwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "finish_forwarded_total",
			Help:      "Total number of finish signals forwarded downstream",
		}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_workers",
			Help:      "Current number of running workers",
		}),
	}
	reg.MustRegister(
		m.ItemsDispatched,
		m.ItemsDropped,
		m.PanicsRecovered,
		m.FinishForwarded,
		m.ActiveWorkers,
	)
	return m
}
