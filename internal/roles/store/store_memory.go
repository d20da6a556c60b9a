package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"meritledger/internal/roles/models"
	"meritledger/pkg/domain"
	"meritledger/pkg/platform/tx"
)

// InMemoryStore keeps memberships in memory for tests/dev. Every mutation
// records an undo so a failed transaction leaves no trace.
type InMemoryStore struct {
	mu      sync.RWMutex
	members map[models.Role]map[domain.Principal]*models.Membership
	admins  map[models.Role]models.Role
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		members: make(map[models.Role]map[domain.Principal]*models.Membership),
		admins:  make(map[models.Role]models.Role),
	}
}

func (s *InMemoryStore) IsMember(_ context.Context, role models.Role, principal domain.Principal) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[role][principal]
	return ok, nil
}

func (s *InMemoryStore) AddMember(ctx context.Context, m *models.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.members[m.Role]
	if !ok {
		set = make(map[domain.Principal]*models.Membership)
		s.members[m.Role] = set
	}
	if _, exists := set[m.Principal]; exists {
		return false, nil
	}
	stored := *m
	set[m.Principal] = &stored

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.members[m.Role], m.Principal)
	})
	return true, nil
}

func (s *InMemoryStore) RemoveMember(ctx context.Context, role models.Role, principal domain.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.members[role][principal]
	if !ok {
		return false, nil
	}
	delete(s.members[role], principal)

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.members[role][principal] = prev
	})
	return true, nil
}

// ListMembers returns holders ordered by principal.
func (s *InMemoryStore) ListMembers(_ context.Context, role models.Role) ([]*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Membership, 0, len(s.members[role]))
	for _, m := range s.members[role] {
		cp := *m
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Membership) int {
		return strings.Compare(string(a.Principal), string(b.Principal))
	})
	return out, nil
}

func (s *InMemoryStore) CountMembers(_ context.Context, role models.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[role]), nil
}

// AdminRoleOf returns the designated admin role, and false when none is set.
func (s *InMemoryStore) AdminRoleOf(_ context.Context, role models.Role) (models.Role, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	admin, ok := s.admins[role]
	return admin, ok, nil
}

func (s *InMemoryStore) SetAdminRole(ctx context.Context, role, admin models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.admins[role]
	s.admins[role] = admin

	tx.RecordUndo(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if had {
			s.admins[role] = prev
		} else {
			delete(s.admins, role)
		}
	})
	return nil
}
