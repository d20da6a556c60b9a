package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the certificate registry.
type Metrics struct {
	Issued            prometheus.Counter
	Revoked           prometheus.Counter
	DuplicateRejected *prometheus.CounterVec
	IssueDuration     prometheus.Histogram
	VerifyLookups     *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Issued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_certificates_issued_total",
			Help: "Total number of certificates issued",
		}),
		Revoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_certificates_revoked_total",
			Help: "Total number of certificates revoked",
		}),
		DuplicateRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "merit_certificate_duplicate_identifiers_total",
			Help: "Issuance attempts rejected for a reused identifier, by kind",
		}, []string{"kind"}),
		IssueDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "merit_certificate_issue_duration_seconds",
			Help:    "Duration of certificate issuance",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		VerifyLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "merit_certificate_verify_total",
			Help: "Content hash verifications by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.Issued.Inc()
}

func (m *Metrics) IncrementRevoked() {
	m.Revoked.Inc()
}

func (m *Metrics) IncrementDuplicate(kind string) {
	m.DuplicateRejected.WithLabelValues(kind).Inc()
}

// ObserveIssue records the duration of an Issue call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveIssue(start time.Time) {
	m.IssueDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementVerify(outcome string) {
	m.VerifyLookups.WithLabelValues(outcome).Inc()
}
