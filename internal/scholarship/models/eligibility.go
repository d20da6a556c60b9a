package models

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"meritledger/pkg/domain"
	textnorm "meritledger/pkg/platform/strings"
)

const ReasonAlreadyClaimed = "already claimed"

// CertificateSummary is the part of a certificate eligibility looks at.
type CertificateSummary struct {
	ID             domain.CertificateID
	IsRevoked      bool
	CourseCodes    []string
	Department     string
	EnrollmentDate time.Time
}

// Profile is what the escrow knows about a student at evaluation time.
type Profile struct {
	CertificateCount uint64
	Courses          map[string]struct{}
	Department       string
	EnrollmentDate   time.Time
}

// BuildProfile folds a student's certificates into a Profile. Revoked
// certificates are ignored. Department and enrollment date come from the
// highest-id certificate that carries them.
func BuildProfile(certs []CertificateSummary) Profile {
	sorted := slices.Clone(certs)
	slices.SortFunc(sorted, func(a, b CertificateSummary) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	p := Profile{Courses: make(map[string]struct{})}
	for _, c := range sorted {
		if c.IsRevoked {
			continue
		}
		p.CertificateCount++
		for _, code := range c.CourseCodes {
			p.Courses[textnorm.NormalizeCode(code)] = struct{}{}
		}
		if c.Department != "" {
			p.Department = c.Department
		}
		if !c.EnrollmentDate.IsZero() {
			p.EnrollmentDate = c.EnrollmentDate
		}
	}
	return p
}

// Eligibility is the outcome of an evaluation. Reasons lists every unmet
// condition in a fixed order: gates, certificate count, courses, department,
// enrollment.
type Eligibility struct {
	Eligible bool     `json:"eligible"`
	Reasons  []string `json:"reasons"`
}

// Evaluate is a pure function of the scholarship, the student's profile, the
// claim flag and now.
func Evaluate(s *Scholarship, p Profile, claimed bool, now time.Time) Eligibility {
	if claimed {
		return Eligibility{Eligible: false, Reasons: []string{ReasonAlreadyClaimed}}
	}

	reasons := []string{}
	if !s.IsActive {
		reasons = append(reasons, "Scholarship is not active")
	}
	if !now.Before(s.Deadline) {
		reasons = append(reasons, "Scholarship deadline has passed")
	}
	if s.CurrentRecipients >= s.MaxRecipients {
		reasons = append(reasons, "Maximum recipients reached")
	}

	c := s.Criteria
	if p.CertificateCount < c.MinCertificateCount {
		reasons = append(reasons, fmt.Sprintf("Need at least %d certificates (you have %d)", c.MinCertificateCount, p.CertificateCount))
	}

	if len(c.RequiredCourses) > 0 {
		if c.RequiresAllCourses {
			var missing []string
			for _, code := range c.RequiredCourses {
				if _, ok := p.Courses[code]; !ok {
					missing = append(missing, code)
				}
			}
			if len(missing) > 0 {
				reasons = append(reasons, "Missing required courses: "+strings.Join(missing, ", "))
			}
		} else if !slices.ContainsFunc(c.RequiredCourses, func(code string) bool {
			_, ok := p.Courses[code]
			return ok
		}) {
			reasons = append(reasons, "Need at least one of the required courses: "+strings.Join(c.RequiredCourses, ", "))
		}
	}

	if len(c.AllowedDepartments) > 0 {
		switch {
		case p.Department == "":
			reasons = append(reasons, "Department not found in certificate records")
		case !textnorm.ContainsFold(c.AllowedDepartments, p.Department):
			reasons = append(reasons, fmt.Sprintf("Department %q is not eligible", p.Department))
		}
	}

	if !c.EnrollmentAfter.IsZero() || !c.EnrollmentBefore.IsZero() {
		switch {
		case p.EnrollmentDate.IsZero():
			reasons = append(reasons, "Enrollment date not found in certificate records")
		case !c.EnrollmentAfter.IsZero() && p.EnrollmentDate.Before(c.EnrollmentAfter):
			reasons = append(reasons, "Enrolled before the allowed window")
		case !c.EnrollmentBefore.IsZero() && p.EnrollmentDate.After(c.EnrollmentBefore):
			reasons = append(reasons, "Enrolled after the allowed window")
		}
	}

	return Eligibility{Eligible: len(reasons) == 0, Reasons: reasons}
}
