// Package memory provides an in-memory implementation of storage.Store.
// It is used by tests and for running the server without a database.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store keeps all data in maps guarded by a single RWMutex.
// Returned values are copies; callers cannot mutate stored state.
type Store struct {
	mu          sync.RWMutex
	groups      map[string]models.Group
	members     map[string][]models.Member // by group
	expenses    map[string][]models.Expense
	settlements map[string]models.Settlement
	order       []string // settlement IDs in creation order
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		groups:      make(map[string]models.Group),
		members:     make(map[string][]models.Member),
		expenses:    make(map[string][]models.Expense),
		settlements: make(map[string]models.Settlement),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[group.ID]; exists {
		return apperr.Conflict("memory.CreateGroup", "group %s already exists", group.ID)
	}
	s.groups[group.ID] = *group
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, apperr.NotFound("memory.GetGroup", "group not found: %s", groupID)
	}
	return &g, nil
}

func (s *Store) AddMember(ctx context.Context, member *models.Member) error {
	const op = "memory.AddMember"
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.CreatedAt == 0 {
		member.CreatedAt = time.Now().Unix()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[member.GroupID]; !ok {
		return apperr.NotFound(op, "group not found: %s", member.GroupID)
	}
	for _, m := range s.members[member.GroupID] {
		if m.ID == member.ID {
			return apperr.Conflict(op, "member %s already in group", member.ID)
		}
	}
	s.members[member.GroupID] = append(s.members[member.GroupID], *member)
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, groupID, memberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ms := s.members[groupID]
	i := slices.IndexFunc(ms, func(m models.Member) bool { return m.ID == memberID })
	if i < 0 {
		return apperr.NotFound("memory.RemoveMember", "member not found: %s", memberID)
	}
	s.members[groupID] = slices.Delete(slices.Clone(ms), i, i+1)
	return nil
}

func (s *Store) MemberReferenced(ctx context.Context, groupID, memberID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses[groupID] {
		if e.PaidBy == memberID {
			return true, nil
		}
		for _, sp := range e.Splits {
			if sp.MemberID == memberID {
				return true, nil
			}
		}
	}
	for _, st := range s.settlements {
		if st.GroupID == groupID && (st.From == memberID || st.To == memberID) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ms := slices.Clone(s.members[groupID])
	slices.SortFunc(ms, func(a, b models.Member) int { return strings.Compare(a.ID, b.ID) })
	return ms, nil
}

func (s *Store) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Expense, len(s.expenses[groupID]))
	for i, e := range s.expenses[groupID] {
		e.Splits = slices.Clone(e.Splits)
		out[i] = e
	}
	return out, nil
}

func (s *Store) CreateExpenseWithSplits(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	seen := make(map[string]bool, len(expense.Splits))
	for i := range expense.Splits {
		if seen[expense.Splits[i].MemberID] {
			return apperr.Conflict("memory.CreateExpenseWithSplits", "duplicate split for member %s", expense.Splits[i].MemberID)
		}
		seen[expense.Splits[i].MemberID] = true
		expense.Splits[i].ExpenseID = expense.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[expense.GroupID]; !ok {
		return apperr.NotFound("memory.CreateExpenseWithSplits", "group not found: %s", expense.GroupID)
	}
	stored := *expense
	stored.Splits = slices.Clone(expense.Splits)
	s.expenses[expense.GroupID] = append(s.expenses[expense.GroupID], stored)
	return nil
}

func (s *Store) ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Settlement
	for _, id := range s.order {
		if st := s.settlements[id]; st.GroupID == groupID {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settlements[settlementID]
	if !ok {
		return nil, apperr.NotFound("memory.GetSettlement", "settlement not found: %s", settlementID)
	}
	return &st, nil
}

func (s *Store) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	const op = "memory.CreateSettlement"
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	settlement.Status = models.StatusPending

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[settlement.GroupID]; !ok {
		return apperr.NotFound(op, "group not found: %s", settlement.GroupID)
	}
	for _, st := range s.settlements {
		if st.GroupID == settlement.GroupID && st.From == settlement.From && st.To == settlement.To &&
			st.Status == models.StatusPending {
			return apperr.Conflict(op, "a pending settlement from %q to %q already exists", st.From, st.To)
		}
	}
	s.settlements[settlement.ID] = *settlement
	s.order = append(s.order, settlement.ID)
	return nil
}

func (s *Store) UpdateSettlementStatus(ctx context.Context, settlementID string, status models.SettlementStatus, completedAt int64) error {
	const op = "memory.UpdateSettlementStatus"

	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[settlementID]
	if !ok {
		return apperr.NotFound(op, "settlement not found: %s", settlementID)
	}
	if st.Status != models.StatusPending {
		return apperr.Conflict(op, "settlement %s is already %s", settlementID, st.Status)
	}
	st.Status = status
	st.CompletedAt = completedAt
	s.settlements[settlementID] = st
	return nil
}
