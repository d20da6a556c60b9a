package models

import (
	"time"

	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
)

// GradeScale is the fixed-point scale of grade points and SGPA: 100 units = 1.0.
const GradeScale = 100

// CourseRecord is one graded course on a certificate. GradePoints uses
// GradeScale.
type CourseRecord struct {
	Code            string `json:"code"`
	Title           string `json:"title"`
	GradeLetter     string `json:"grade_letter"`
	GradePoints     uint64 `json:"grade_points"`
	Status          string `json:"status"`
	CreditsObtained uint64 `json:"credits_obtained"`
}

// Metadata is the descriptive part of a certificate. StudentName,
// RegistrationNo, Institution and Department are required.
type Metadata struct {
	StudentName    string    `json:"student_name"`
	RegistrationNo string    `json:"registration_no"`
	Institution    string    `json:"institution"`
	Department     string    `json:"department"`
	RollNo         string    `json:"roll_no,omitempty"`
	Program        string    `json:"program,omitempty"`
	Semester       string    `json:"semester,omitempty"`
	ExamSession    string    `json:"exam_session,omitempty"`
	EnrollmentDate time.Time `json:"enrollment_date,omitzero"`
}

// Aggregate is derived from the courses at issuance and never recomputed.
type Aggregate struct {
	TotalCredits uint64 `json:"total_credits"`
	SGPA         uint64 `json:"sgpa"`
}

// Certificate is the aggregate root of the registry.
//
// Invariants:
//   - ID, Owner, identifiers, Courses, Aggregate, Issuer and IssuedAt never change
//   - IsRevoked moves false to true at most once
//   - Certificates are never deleted
type Certificate struct {
	ID          domain.CertificateID `json:"id"`
	Owner       domain.Principal     `json:"owner"`
	SerialNo    string               `json:"serial_no"`
	MemoNo      string               `json:"memo_no"`
	ContentHash string               `json:"content_hash"`
	Metadata    Metadata             `json:"metadata"`
	Courses     []CourseRecord       `json:"courses"`
	Aggregate   Aggregate            `json:"aggregate"`
	Issuer      domain.Principal     `json:"issuer"`
	IssuedAt    time.Time            `json:"issued_at"`
	IsRevoked   bool                 `json:"is_revoked"`
	RevokedBy   domain.Principal     `json:"revoked_by,omitempty"`
	RevokedAt   *time.Time           `json:"revoked_at,omitempty"`
}

// CanRevoke checks the one-way revocation transition.
// Use with ApplyRevocation in Execute callbacks.
func (c *Certificate) CanRevoke() error {
	if c.IsRevoked {
		return dErrors.New(dErrors.CodeAlreadyRevoked, "certificate is already revoked")
	}
	return nil
}

// ApplyRevocation marks the certificate revoked. Call CanRevoke first.
func (c *Certificate) ApplyRevocation(by domain.Principal, now time.Time) {
	c.IsRevoked = true
	c.RevokedBy = by
	c.RevokedAt = &now
}

// Identifiers lists the index entries this certificate occupies.
func (c *Certificate) Identifiers() []Identifier {
	return []Identifier{
		{Kind: IdentifierSerial, Value: c.SerialNo},
		{Kind: IdentifierMemo, Value: c.MemoNo},
		{Kind: IdentifierHash, Value: c.ContentHash},
	}
}

// Clone returns a deep copy safe to hand out of a store.
func (c *Certificate) Clone() *Certificate {
	cp := *c
	cp.Courses = append([]CourseRecord(nil), c.Courses...)
	if c.RevokedAt != nil {
		t := *c.RevokedAt
		cp.RevokedAt = &t
	}
	return &cp
}

// IdentifierKind separates the permanent uniqueness namespaces.
type IdentifierKind string

const (
	IdentifierSerial IdentifierKind = "serial"
	IdentifierMemo   IdentifierKind = "memo"
	IdentifierHash   IdentifierKind = "hash"
)

func ParseIdentifierKind(s string) (IdentifierKind, error) {
	switch k := IdentifierKind(s); k {
	case IdentifierSerial, IdentifierMemo, IdentifierHash:
		return k, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "identifier kind must be serial, memo or hash")
}

// Identifier is one entry in the uniqueness index.
type Identifier struct {
	Kind  IdentifierKind `json:"kind"`
	Value string         `json:"value"`
}
