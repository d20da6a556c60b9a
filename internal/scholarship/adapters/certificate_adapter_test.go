package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	certmodels "meritledger/internal/certificate/models"
	"meritledger/pkg/domain"
)

type listerFunc func(ctx context.Context, owner domain.Principal) ([]*certmodels.Certificate, error)

func (f listerFunc) ListByOwner(ctx context.Context, owner domain.Principal) ([]*certmodels.Certificate, error) {
	return f(ctx, owner)
}

func TestCertificatesOfProjectsSummaries(t *testing.T) {
	enrolled := time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC)
	adapter := NewCertificateAdapter(listerFunc(func(context.Context, domain.Principal) ([]*certmodels.Certificate, error) {
		return []*certmodels.Certificate{{
			ID:        7,
			IsRevoked: true,
			Courses:   []certmodels.CourseRecord{{Code: "CSE101"}, {Code: "MAT201"}},
			Metadata:  certmodels.Metadata{Department: "CSE", EnrollmentDate: enrolled},
		}}, nil
	}))

	got, err := adapter.CertificatesOf(context.Background(), domain.MustPrincipal("0x00000000000000000000000000000000000000c0"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.CertificateID(7), got[0].ID)
	assert.True(t, got[0].IsRevoked)
	assert.Equal(t, []string{"CSE101", "MAT201"}, got[0].CourseCodes)
	assert.Equal(t, "CSE", got[0].Department)
	assert.Equal(t, enrolled, got[0].EnrollmentDate)
}

func TestCertificatesOfPropagatesErrors(t *testing.T) {
	boom := errors.New("registry down")
	adapter := NewCertificateAdapter(listerFunc(func(context.Context, domain.Principal) ([]*certmodels.Certificate, error) {
		return nil, boom
	}))
	_, err := adapter.CertificatesOf(context.Background(), domain.MustPrincipal("0x00000000000000000000000000000000000000c0"))
	assert.ErrorIs(t, err, boom)
}
