package bus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts bus traffic. A nil *Metrics records nothing.
type Metrics struct {
	Published      *prometheus.CounterVec
	Failed         *prometheus.CounterVec
	Connected      prometheus.Gauge
	InboundDropped prometheus.Counter
}

// NewMetrics creates and registers the bridge metrics on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "midibridge",
				Subsystem: "bus",
				Name:      "published_total",
				Help:      "Messages published, by topic",
			},
			[]string{"topic"},
		),
		Failed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "midibridge",
				Subsystem: "bus",
				Name:      "failed_total",
				Help:      "Messages dropped after a publish error, by topic",
			},
			[]string{"topic"},
		),
		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "midibridge",
				Subsystem: "bus",
				Name:      "connected",
				Help:      "Broker connection state (1=connected)",
			},
		),
		InboundDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "midibridge",
				Subsystem: "midi",
				Name:      "inbound_dropped_total",
				Help:      "Inbound events dropped because the queue was full",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.Published, m.Failed, m.Connected, m.InboundDropped} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) published(t Topic) {
	if m != nil {
		m.Published.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) failed(t Topic) {
	if m != nil {
		m.Failed.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) connected(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

// InboundDrop records one event dropped by the inbound queue.
func (m *Metrics) InboundDrop() {
	if m != nil {
		m.InboundDropped.Inc()
	}
}

// Handler exposes the registry for scraping.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
