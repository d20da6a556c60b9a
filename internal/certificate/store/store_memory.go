package store

import (
	"context"
	"fmt"
	"sync"

	"meritledger/internal/certificate/models"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
)

// InMemoryStore is the registry state: an arena of certificates indexed by id,
// a per-owner index and the permanent identifier index. Mutations record undo
// closures so a rolled-back transaction restores the previous state.
type InMemoryStore struct {
	mu          sync.RWMutex
	nextID      domain.CertificateID
	byID        map[domain.CertificateID]*models.Certificate
	byOwner     map[domain.Principal][]domain.CertificateID
	identifiers map[models.Identifier]domain.CertificateID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:      1,
		byID:        make(map[domain.CertificateID]*models.Certificate),
		byOwner:     make(map[domain.Principal][]domain.CertificateID),
		identifiers: make(map[models.Identifier]domain.CertificateID),
	}
}

// Create assigns the next id and claims every identifier of cert, or fails
// with *DuplicateIdentifierError without changing anything.
func (s *InMemoryStore) Create(ctx context.Context, cert *models.Certificate) (domain.CertificateID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := cert.Identifiers()
	for _, ident := range ids {
		if _, used := s.identifiers[ident]; used {
			return 0, &DuplicateIdentifierError{Kind: ident.Kind, Value: ident.Value}
		}
	}

	id := s.nextID
	stored := cert.Clone()
	stored.ID = id
	s.nextID++
	s.byID[id] = stored
	s.byOwner[stored.Owner] = append(s.byOwner[stored.Owner], id)
	for _, ident := range ids {
		s.identifiers[ident] = id
	}

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, ident := range ids {
			delete(s.identifiers, ident)
		}
		owned := s.byOwner[stored.Owner]
		s.byOwner[stored.Owner] = owned[:len(owned)-1]
		delete(s.byID, id)
		s.nextID = id
	})
	return id, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.CertificateID) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("certificate %d: %w", id, ErrNotFound)
	}
	return cert.Clone(), nil
}

func (s *InMemoryStore) FindByIdentifier(_ context.Context, kind models.IdentifierKind, value string) (*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identifiers[models.Identifier{Kind: kind, Value: value}]
	if !ok {
		return nil, fmt.Errorf("certificate with %s %q: %w", kind, value, ErrNotFound)
	}
	return s.byID[id].Clone(), nil
}

func (s *InMemoryStore) IsIdentifierUsed(_ context.Context, kind models.IdentifierKind, value string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.identifiers[models.Identifier{Kind: kind, Value: value}]
	return ok, nil
}

// ListByOwner returns the owner's certificates in id order, revoked included.
func (s *InMemoryStore) ListByOwner(_ context.Context, owner domain.Principal) ([]*models.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byOwner[owner]
	out := make([]*models.Certificate, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

// Execute runs validate then mutate against the stored certificate under the
// store lock.
func (s *InMemoryStore) Execute(ctx context.Context, id domain.CertificateID, validate func(*models.Certificate) error, mutate func(*models.Certificate)) (*models.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("certificate %d: %w", id, ErrNotFound)
	}
	if err := validate(cert); err != nil {
		return nil, err
	}
	prev := cert.Clone()
	mutate(cert)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.byID[id] = prev
	})
	return cert.Clone(), nil
}
