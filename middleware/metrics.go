package middleware

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "mini_thrift"
	metricsSubsystem = "dispatcher"
)

// MetricsObserver counts dispatched calls per service, method and message kind.
type MetricsObserver struct {
	service string
	calls   *prometheus.CounterVec
}

// Metrics creates a counting observer labelled with the service name.
func Metrics(service string) *MetricsObserver {
	return &MetricsObserver{
		service: service,
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_total",
			Help:      "Inbound calls dispatched, by service, method and message kind.",
		}, []string{"service", "method", "kind"}),
	}
}

// Register registers the collectors with r.
func (m *MetricsObserver) Register(r prometheus.Registerer) error {
	return r.Register(m.calls)
}

// Calls exposes the underlying counter vector.
func (m *MetricsObserver) Calls() *prometheus.CounterVec { return m.calls }

func (m *MetricsObserver) Observe(_ context.Context, call Call) {
	m.calls.WithLabelValues(m.service, call.Method, call.Kind.String()).Inc()
}
