package adapters

import (
	"context"

	certmodels "meritledger/internal/certificate/models"
	"meritledger/internal/scholarship/models"
	"meritledger/pkg/domain"
)

// CertificateLister is the registry query the escrow reads from.
type CertificateLister interface {
	ListByOwner(ctx context.Context, owner domain.Principal) ([]*certmodels.Certificate, error)
}

// CertificateAdapter projects registry certificates into eligibility summaries.
// The escrow never writes through it.
type CertificateAdapter struct {
	registry CertificateLister
}

func NewCertificateAdapter(registry CertificateLister) *CertificateAdapter {
	return &CertificateAdapter{registry: registry}
}

func (a *CertificateAdapter) CertificatesOf(ctx context.Context, student domain.Principal) ([]models.CertificateSummary, error) {
	certs, err := a.registry.ListByOwner(ctx, student)
	if err != nil {
		return nil, err
	}
	out := make([]models.CertificateSummary, 0, len(certs))
	for _, c := range certs {
		codes := make([]string, 0, len(c.Courses))
		for _, course := range c.Courses {
			codes = append(codes, course.Code)
		}
		out = append(out, models.CertificateSummary{
			ID:             c.ID,
			IsRevoked:      c.IsRevoked,
			CourseCodes:    codes,
			Department:     c.Metadata.Department,
			EnrollmentDate: c.Metadata.EnrollmentDate,
		})
	}
	return out, nil
}
