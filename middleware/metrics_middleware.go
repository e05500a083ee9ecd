package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts bytes, packets and failures on one or more channels.
type Metrics struct {
	packets  *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg (if not nil).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "channel",
			Name:      "packets_sent_total",
			Help:      "Packets written to a channel",
		}, []string{"channel"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "channel",
			Name:      "bytes_sent_total",
			Help:      "Bytes written to a channel",
		}, []string{"channel"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "channel",
			Name:      "send_failures_total",
			Help:      "Failed channel sends",
		}, []string{"channel"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.packets, m.bytes, m.failures} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Middleware returns a middleware recording sends under the given channel label.
func (m *Metrics) Middleware(channel string) Middleware {
	packets := m.packets.WithLabelValues(channel)
	bytes := m.bytes.WithLabelValues(channel)
	failures := m.failures.WithLabelValues(channel)
	return func(next SendFunc) SendFunc {
		return func(data []byte) error {
			if err := next(data); err != nil {
				failures.Inc()
				return err
			}
			packets.Inc()
			bytes.Add(float64(len(data)))
			return nil
		}
	}
}
