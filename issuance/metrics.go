package issuance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeIssued          = "issued"
	OutcomeRejected        = "rejected"
	OutcomeUnknownManifest = "unknown_manifest"
	OutcomeError           = "error"
)

// Metrics counts issuance requests.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec   // by manifest and outcome
	RejectionsTotal *prometheus.CounterVec   // by verification kind
	DurationSeconds *prometheus.HistogramVec // by outcome
}

// NewMetrics registers the issuance metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_issuance_requests_total",
			Help: "Credential applications received, by manifest and outcome",
		}, []string{"manifest", "outcome"}),
		RejectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "credential_issuance_rejections_total",
			Help: "Credential applications rejected, by verification error kind",
		}, []string{"kind"}),
		DurationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "credential_issuance_duration_seconds",
			Help:    "Time to evaluate an application and sign its fulfillment",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(manifestID, outcome, kind string, start time.Time) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(manifestID, outcome).Inc()
	if kind != "" {
		m.RejectionsTotal.WithLabelValues(kind).Inc()
	}
	m.DurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
