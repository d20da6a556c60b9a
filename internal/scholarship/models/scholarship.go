package models

import (
	"strings"
	"time"

	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	textnorm "meritledger/pkg/platform/strings"
)

// PayoutModel decides how much each successful claim receives.
type PayoutModel string

const (
	// PayoutFixedShare pays TotalFunds / MaxRecipients to every recipient. The
	// division remainder stays in escrow until the scholarship is closed.
	PayoutFixedShare PayoutModel = "fixed_share"
	// PayoutPool pays the remaining pool divided by the remaining slots.
	PayoutPool PayoutModel = "pool"
)

// ParsePayoutModel maps "" to PayoutFixedShare.
func ParsePayoutModel(s string) (PayoutModel, error) {
	switch m := PayoutModel(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return PayoutFixedShare, nil
	case PayoutFixedShare, PayoutPool:
		return m, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "payout_model must be fixed_share or pool")
}

// Criteria are the student-level eligibility conditions. Zero values disable a
// condition.
type Criteria struct {
	MinCertificateCount uint64    `json:"min_certificate_count"`
	RequiredCourses     []string  `json:"required_courses,omitempty"`
	RequiresAllCourses  bool      `json:"requires_all_courses"`
	AllowedDepartments  []string  `json:"allowed_departments,omitempty"`
	EnrollmentAfter     time.Time `json:"enrollment_after,omitzero"`
	EnrollmentBefore    time.Time `json:"enrollment_before,omitzero"`
}

// Normalize upper-cases course codes and drops blank entries so they compare
// the same way certificate course codes do.
func (c *Criteria) Normalize() {
	c.RequiredCourses = textnorm.NormalizeCodes(c.RequiredCourses)
	c.AllowedDepartments = textnorm.NormalizeNames(c.AllowedDepartments)
}

func (c Criteria) clone() Criteria {
	c.RequiredCourses = append([]string(nil), c.RequiredCourses...)
	c.AllowedDepartments = append([]string(nil), c.AllowedDepartments...)
	return c
}

// Scholarship is the aggregate root of the escrow.
//
// Invariants:
//   - ClaimedFunds + RefundedFunds <= TotalFunds
//   - CurrentRecipients <= MaxRecipients
//   - IsActive only moves true to false
type Scholarship struct {
	ID                domain.ScholarshipID `json:"id"`
	Name              string               `json:"name"`
	Description       string               `json:"description,omitempty"`
	Creator           domain.Principal     `json:"creator"`
	PayoutModel       PayoutModel          `json:"payout_model"`
	TotalFunds        domain.Amount        `json:"total_funds"`
	ClaimedFunds      domain.Amount        `json:"claimed_funds"`
	RefundedFunds     domain.Amount        `json:"refunded_funds"`
	MaxRecipients     uint64               `json:"max_recipients"`
	CurrentRecipients uint64               `json:"current_recipients"`
	Deadline          time.Time            `json:"deadline"`
	Criteria          Criteria             `json:"criteria"`
	IsActive          bool                 `json:"is_active"`
	CreatedAt         time.Time            `json:"created_at"`
	ClosedAt          *time.Time           `json:"closed_at,omitempty"`
}

// Remaining is the part of TotalFunds still held in escrow.
func (s *Scholarship) Remaining() domain.Amount {
	return s.TotalFunds - s.ClaimedFunds - s.RefundedFunds
}

// Payout computes what the next claim receives.
func (s *Scholarship) Payout() (domain.Amount, error) {
	if s.CurrentRecipients >= s.MaxRecipients {
		return 0, dErrors.New(dErrors.CodeNotEligible, "no recipient slots left")
	}
	var amount domain.Amount
	switch s.PayoutModel {
	case PayoutPool:
		amount = s.Remaining() / domain.Amount(s.MaxRecipients-s.CurrentRecipients)
	default:
		amount = s.TotalFunds / domain.Amount(s.MaxRecipients)
	}
	if amount == 0 || amount > s.Remaining() {
		return 0, dErrors.New(dErrors.CodeInsufficientFunds, "escrow cannot cover another payout")
	}
	return amount, nil
}

// ApplyClaim records one paid recipient and deactivates the scholarship once
// it is exhausted.
func (s *Scholarship) ApplyClaim(amount domain.Amount) {
	s.CurrentRecipients++
	s.ClaimedFunds += amount
	if s.ClaimedFunds == s.TotalFunds || s.CurrentRecipients == s.MaxRecipients {
		s.IsActive = false
	}
}

func (s *Scholarship) CanClose() error {
	if s.ClosedAt != nil {
		return dErrors.New(dErrors.CodeConflict, "scholarship is already closed")
	}
	return nil
}

// ApplyClose deactivates the scholarship and books the remainder as refunded.
// It returns the refunded amount.
func (s *Scholarship) ApplyClose(now time.Time) domain.Amount {
	refund := s.Remaining()
	s.RefundedFunds += refund
	s.IsActive = false
	s.ClosedAt = &now
	return refund
}

func (s *Scholarship) Clone() *Scholarship {
	cp := *s
	cp.Criteria = s.Criteria.clone()
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		cp.ClosedAt = &t
	}
	return &cp
}

// Claim is a paid (scholarship, student) pair. At most one exists per pair.
type Claim struct {
	ScholarshipID domain.ScholarshipID `json:"scholarship_id"`
	Student       domain.Principal     `json:"student"`
	Amount        domain.Amount        `json:"amount"`
	ClaimedAt     time.Time            `json:"claimed_at"`
}
