package store

import (
	"context"
	"fmt"
	"sync"

	"meritledger/internal/scholarship/models"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
)

type claimKey struct {
	id      domain.ScholarshipID
	student domain.Principal
}

// InMemoryStore keeps scholarships and claims in maps. Mutations record undo
// closures on the surrounding transaction.
type InMemoryStore struct {
	mu           sync.RWMutex
	nextID       domain.ScholarshipID
	scholarships map[domain.ScholarshipID]*models.Scholarship
	claims       map[claimKey]*models.Claim
	claimOrder   map[domain.ScholarshipID][]domain.Principal
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		nextID:       1,
		scholarships: make(map[domain.ScholarshipID]*models.Scholarship),
		claims:       make(map[claimKey]*models.Claim),
		claimOrder:   make(map[domain.ScholarshipID][]domain.Principal),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, sch *models.Scholarship) (domain.ScholarshipID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	stored := sch.Clone()
	stored.ID = id
	s.nextID++
	s.scholarships[id] = stored

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.scholarships, id)
		s.nextID = id
	})
	return id, nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ScholarshipID) (*models.Scholarship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sch, ok := s.scholarships[id]
	if !ok {
		return nil, fmt.Errorf("scholarship %d: %w", id, ErrNotFound)
	}
	return sch.Clone(), nil
}

// List returns scholarships in id order.
func (s *InMemoryStore) List(_ context.Context, activeOnly bool) ([]*models.Scholarship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Scholarship, 0, len(s.scholarships))
	for id := domain.ScholarshipID(1); id < s.nextID; id++ {
		sch, ok := s.scholarships[id]
		if !ok || (activeOnly && !sch.IsActive) {
			continue
		}
		out = append(out, sch.Clone())
	}
	return out, nil
}

// Execute runs validate then mutate against the stored scholarship under the
// store lock.
func (s *InMemoryStore) Execute(ctx context.Context, id domain.ScholarshipID, validate func(*models.Scholarship) error, mutate func(*models.Scholarship)) (*models.Scholarship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sch, ok := s.scholarships[id]
	if !ok {
		return nil, fmt.Errorf("scholarship %d: %w", id, ErrNotFound)
	}
	if err := validate(sch); err != nil {
		return nil, err
	}
	prev := sch.Clone()
	mutate(sch)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.scholarships[id] = prev
	})
	return sch.Clone(), nil
}

func (s *InMemoryStore) HasClaimed(_ context.Context, id domain.ScholarshipID, student domain.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.claims[claimKey{id, student}]
	return ok, nil
}

func (s *InMemoryStore) RecordClaim(ctx context.Context, claim *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := claimKey{claim.ScholarshipID, claim.Student}
	if _, ok := s.claims[key]; ok {
		return fmt.Errorf("claim %d/%s: %w", claim.ScholarshipID, claim.Student, ErrAlreadyClaimed)
	}
	cp := *claim
	s.claims[key] = &cp
	s.claimOrder[key.id] = append(s.claimOrder[key.id], key.student)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.claims, key)
		order := s.claimOrder[key.id]
		s.claimOrder[key.id] = order[:len(order)-1]
	})
	return nil
}

// ListClaims returns the claims of a scholarship in claim order.
func (s *InMemoryStore) ListClaims(_ context.Context, id domain.ScholarshipID) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	students := s.claimOrder[id]
	out := make([]*models.Claim, 0, len(students))
	for _, student := range students {
		cp := *s.claims[claimKey{id, student}]
		out = append(out, &cp)
	}
	return out, nil
}
