package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the scholarship escrow.
type Metrics struct {
	Created             prometheus.Counter
	Claims              prometheus.Counter
	PayoutAmount        prometheus.Counter
	Closed              prometheus.Counter
	RefundAmount        prometheus.Counter
	Evaluations         *prometheus.CounterVec
	ReentrantRejections *prometheus.CounterVec
	TransferFailures    prometheus.Counter
	ClaimDuration       prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_scholarships_created_total",
			Help: "Total number of scholarships deposited",
		}),
		Claims: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_scholarship_claims_total",
			Help: "Total number of successful scholarship claims",
		}),
		PayoutAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_scholarship_payout_amount_total",
			Help: "Total value paid out to students",
		}),
		Closed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_scholarships_closed_total",
			Help: "Total number of scholarships closed",
		}),
		RefundAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_scholarship_refund_amount_total",
			Help: "Total value refunded to creators on close",
		}),
		Evaluations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "merit_eligibility_evaluations_total",
			Help: "Eligibility evaluations by outcome",
		}, []string{"outcome"}),
		ReentrantRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "merit_reentrant_rejections_total",
			Help: "Calls rejected because a fund transfer was in flight, by operation",
		}, []string{"operation"}),
		TransferFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "merit_scholarship_transfer_failures_total",
			Help: "Payouts and refunds rolled back because the transfer failed",
		}),
		ClaimDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "merit_scholarship_claim_duration_seconds",
			Help:    "Duration of scholarship claims",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.Created.Inc()
}

// RecordClaim counts a successful claim and its payout.
func (m *Metrics) RecordClaim(amount uint64, start time.Time) {
	m.Claims.Inc()
	m.PayoutAmount.Add(float64(amount))
	m.ClaimDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecordClose(refund uint64) {
	m.Closed.Inc()
	m.RefundAmount.Add(float64(refund))
}

func (m *Metrics) IncrementEvaluation(eligible bool) {
	outcome := "ineligible"
	if eligible {
		outcome = "eligible"
	}
	m.Evaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementReentrant(operation string) {
	m.ReentrantRejections.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncrementTransferFailure() {
	m.TransferFailures.Inc()
}
