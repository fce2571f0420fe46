// Package metrics provides the prometheus collectors shared by the spyre
// client, dispatchers and forwarding server.
//
// A nil *Metrics is valid and records nothing, so library callers that do not
// care about metrics can pass nil everywhere.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spyre"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds every spyre collector.
type Metrics struct {
	remoteRequestsTotal   *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec
	streamDecodeErrors    prometheus.Counter
	dispatchUnitsTotal    *prometheus.CounterVec
	dispatchInflight      *prometheus.GaugeVec
	httpRequestsTotal     *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid duplicate registration against the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		remoteRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_requests_total",
				Help:      "Total number of requests sent to the inference endpoint",
			},
			[]string{"endpoint", "outcome"},
		),
		remoteRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_request_duration_seconds",
				Help:      "Inference endpoint request duration in seconds",
				Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"endpoint"},
		),
		streamDecodeErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_decode_errors_total",
				Help:      "Streamed lines skipped because they were not valid JSON",
			},
		),
		dispatchUnitsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_units_total",
				Help:      "Dispatched batches or items by outcome",
			},
			[]string{"dispatcher", "outcome"},
		),
		dispatchInflight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dispatch_inflight",
				Help:      "Dispatch units currently in flight",
			},
			[]string{"dispatcher"},
		),
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Requests served by the forwarding server",
			},
			[]string{"route", "status"},
		),
	}
}

// ObserveRemote records one call to the inference endpoint.
func (m *Metrics) ObserveRemote(endpoint string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.remoteRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	m.remoteRequestDuration.WithLabelValues(endpoint).Observe(d.Seconds())
}

// StreamDecodeError records one skipped streamed line.
func (m *Metrics) StreamDecodeError() {
	if m == nil {
		return
	}
	m.streamDecodeErrors.Inc()
}

// DispatchUnit records the outcome of one dispatch unit.
func (m *Metrics) DispatchUnit(dispatcher string, err error) {
	if m == nil {
		return
	}
	m.dispatchUnitsTotal.WithLabelValues(dispatcher, outcome(err)).Inc()
}

// DispatchStarted increments the in-flight gauge and returns a func that
// decrements it.
func (m *Metrics) DispatchStarted(dispatcher string) func() {
	if m == nil {
		return func() {}
	}
	g := m.dispatchInflight.WithLabelValues(dispatcher)
	g.Inc()
	return g.Dec
}

// HTTPRequest records one request served by the forwarding server.
func (m *Metrics) HTTPRequest(route, status string) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, status).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
