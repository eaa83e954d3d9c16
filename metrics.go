package crud

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds prometheus collectors for statements executed by the Gateway
// and requests served by the HTTP handlers. A nil *Metrics records nothing.
type Metrics struct {
	statements        *prometheus.CounterVec
	statementDuration *prometheus.HistogramVec
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewMetrics creates collectors and registers them with reg. When reg is nil
// collectors are created but not registered anywhere.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		statements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mustwatch_statements_total",
				Help: "Total number of SQL statements executed by the gateway",
			},
			[]string{"kind", "outcome"},
		),
		statementDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mustwatch_statement_duration_seconds",
				Help:    "Duration of SQL statements including connection acquisition",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"kind"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mustwatch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mustwatch_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.statements, m.statementDuration, m.requests, m.requestDuration)
	}
	return m
}

func (m *Metrics) observeStatement(kind StatementKind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.statements.WithLabelValues(kind.String(), outcome).Inc()
	m.statementDuration.WithLabelValues(kind.String()).Observe(d.Seconds())
}

func (m *Metrics) observeRequest(method string, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, code).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}
