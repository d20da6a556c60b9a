package models

import (
	"strings"
	"time"

	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
)

// DepositRequest creates a funded scholarship. FundsAttached is the value the
// caller moves into escrow with the call.
type DepositRequest struct {
	Name          string
	Description   string
	TotalAmount   domain.Amount
	MaxRecipients uint64
	Deadline      time.Time
	Criteria      Criteria
	PayoutModel   PayoutModel
	FundsAttached domain.Amount
}

func (r *DepositRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.PayoutModel == "" {
		r.PayoutModel = PayoutFixedShare
	}
	r.Criteria.Normalize()
}

// Validate checks the request against the clock. Funding is checked by the
// caller before this.
func (r *DepositRequest) Validate(now time.Time) error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request is required")
	}
	if r.Name == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if r.TotalAmount == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "total_amount must be positive")
	}
	if r.MaxRecipients == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "max_recipients must be positive")
	}
	if !r.Deadline.After(now) {
		return dErrors.New(dErrors.CodeInvalidInput, "deadline must be in the future")
	}
	// The first pool payout equals the fixed share, so both models need it positive.
	if r.TotalAmount/domain.Amount(r.MaxRecipients) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "total_amount is too small to pay every recipient")
	}
	c := r.Criteria
	if !c.EnrollmentAfter.IsZero() && !c.EnrollmentBefore.IsZero() && c.EnrollmentBefore.Before(c.EnrollmentAfter) {
		return dErrors.New(dErrors.CodeInvalidInput, "enrollment_before must not precede enrollment_after")
	}
	return nil
}
