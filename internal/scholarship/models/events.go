package models

import (
	"time"

	"meritledger/pkg/domain"
)

type ScholarshipCreated struct {
	ID            domain.ScholarshipID `json:"id"`
	Creator       domain.Principal     `json:"creator"`
	TotalAmount   domain.Amount        `json:"total_amount"`
	MaxRecipients uint64               `json:"max_recipients"`
	Deadline      time.Time            `json:"deadline"`
}

type ScholarshipClaimed struct {
	ID        domain.ScholarshipID `json:"id"`
	Student   domain.Principal     `json:"student"`
	Amount    domain.Amount        `json:"amount"`
	Timestamp time.Time            `json:"timestamp"`
}

type ScholarshipClosed struct {
	ID       domain.ScholarshipID `json:"id"`
	ClosedBy domain.Principal     `json:"closed_by"`
	Refunded domain.Amount        `json:"refunded"`
}
