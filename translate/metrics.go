package translate

import "github.com/prometheus/client_golang/prometheus"

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

type metrics struct {
	dispatched prometheus.Counter
	completed  *prometheus.CounterVec
	inFlight   prometheus.Gauge
}

func newMetrics() *metrics {
	return &metrics{
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "locasset",
			Subsystem: "translate",
			Name:      "requests_dispatched_total",
			Help:      "Translation requests dispatched to the service.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "locasset",
			Subsystem: "translate",
			Name:      "requests_completed_total",
			Help:      "Translation completions applied, by outcome.",
		}, []string{"outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "locasset",
			Subsystem: "translate",
			Name:      "requests_in_flight",
			Help:      "Translation requests waiting on the service.",
		}),
	}
}

func (m *metrics) register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.dispatched, m.completed, m.inFlight} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
