package models

import (
	"time"

	"meritledger/pkg/domain"
)

// CertificateIssued is the payload of a certificate_issued event.
type CertificateIssued struct {
	ID          domain.CertificateID `json:"id"`
	Owner       domain.Principal     `json:"owner"`
	SerialNo    string               `json:"serial_no"`
	MemoNo      string               `json:"memo_no"`
	ContentHash string               `json:"content_hash"`
	Issuer      domain.Principal     `json:"issuer"`
	Timestamp   time.Time            `json:"timestamp"`
}

// CertificateRevoked is the payload of a certificate_revoked event.
type CertificateRevoked struct {
	ID        domain.CertificateID `json:"id"`
	Owner     domain.Principal     `json:"owner"`
	RevokedBy domain.Principal     `json:"revoked_by"`
}
