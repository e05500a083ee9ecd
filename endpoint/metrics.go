package endpoint

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	activeCalls  prometheus.Gauge
	packetsSent  *prometheus.CounterVec
	sendFailures *prometheus.CounterVec
	dispatched   *prometheus.CounterVec
	superseded   prometheus.Counter
}

// newMetrics builds the endpoint collectors and registers them with reg.
// A nil reg leaves them unregistered; they are still updated.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		activeCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rpc",
			Subsystem: "endpoint",
			Name:      "active_calls",
			Help:      "Number of calls in the active-call table",
		}),
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "endpoint",
			Name:      "packets_sent_total",
			Help:      "Packets handed to a channel, by packet type",
		}, []string{"type"}),
		sendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "endpoint",
			Name:      "send_failures_total",
			Help:      "Packets whose channel send failed, by packet type",
		}, []string{"type"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "endpoint",
			Name:      "packets_dispatched_total",
			Help:      "Inbound packets by dispatch result",
		}, []string{"result"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rpc",
			Subsystem: "endpoint",
			Name:      "calls_superseded_total",
			Help:      "Active calls replaced by a new call with the same identity after call id wrap-around",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.activeCalls, m.packetsSent, m.sendFailures, m.dispatched, m.superseded} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
