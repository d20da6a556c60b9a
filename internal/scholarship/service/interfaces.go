package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"meritledger/internal/ledger"
	rolemodels "meritledger/internal/roles/models"
	"meritledger/internal/scholarship/models"
	"meritledger/pkg/domain"
)

// RoleChecker answers role membership questions.
type RoleChecker interface {
	HasRole(ctx context.Context, role rolemodels.Role, principal domain.Principal) bool
}

// CertificateReader lists a student's certificates, revoked ones included.
type CertificateReader interface {
	CertificatesOf(ctx context.Context, student domain.Principal) ([]models.CertificateSummary, error)
}

// Vault moves escrowed value. Transfer participates in the transaction carried
// by ctx.
type Vault interface {
	Transfer(ctx context.Context, from, to ledger.Account, amount domain.Amount, memo string) error
}
