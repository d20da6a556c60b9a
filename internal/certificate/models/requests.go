package models

import (
	"fmt"
	"strings"

	"meritledger/pkg/domain"
	dErrors "meritledger/pkg/domain-errors"
	textnorm "meritledger/pkg/platform/strings"
)

// IssueRequest is the input to CertificateRegistry.Issue.
type IssueRequest struct {
	Owner    domain.Principal
	SerialNo string
	MemoNo   string
	Courses  []CourseRecord
	Metadata Metadata
}

// Normalize trims text fields. Codes are upper-cased so "cse101" and "CSE101"
// name the same course.
func (r *IssueRequest) Normalize() {
	if r == nil {
		return
	}
	r.SerialNo = strings.TrimSpace(r.SerialNo)
	r.MemoNo = strings.TrimSpace(r.MemoNo)
	m := &r.Metadata
	m.StudentName = strings.TrimSpace(m.StudentName)
	m.RegistrationNo = strings.TrimSpace(m.RegistrationNo)
	m.Institution = strings.TrimSpace(m.Institution)
	m.Department = strings.TrimSpace(m.Department)
	m.RollNo = strings.TrimSpace(m.RollNo)
	m.Program = strings.TrimSpace(m.Program)
	m.Semester = strings.TrimSpace(m.Semester)
	m.ExamSession = strings.TrimSpace(m.ExamSession)
	for i := range r.Courses {
		c := &r.Courses[i]
		c.Code = textnorm.NormalizeCode(c.Code)
		c.Title = strings.TrimSpace(c.Title)
		c.GradeLetter = strings.TrimSpace(c.GradeLetter)
		c.Status = strings.TrimSpace(c.Status)
	}
}

// Validate reports the first missing required field by name.
func (r *IssueRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request is required")
	}
	if r.Owner.IsZero() {
		return missing("owner")
	}
	required := []struct {
		name  string
		value string
	}{
		{"serial_no", r.SerialNo},
		{"memo_no", r.MemoNo},
		{"student_name", r.Metadata.StudentName},
		{"registration_no", r.Metadata.RegistrationNo},
		{"institution", r.Metadata.Institution},
		{"department", r.Metadata.Department},
	}
	for _, f := range required {
		if f.value == "" {
			return missing(f.name)
		}
	}
	if len(r.Courses) == 0 {
		return missing("courses")
	}
	for i, c := range r.Courses {
		if c.Code == "" {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("courses[%d].code is required", i))
		}
		if c.GradeLetter == "" {
			return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("courses[%d].grade_letter is required", i))
		}
	}
	return nil
}

func missing(field string) error {
	return dErrors.New(dErrors.CodeInvalidInput, field+" is required")
}
