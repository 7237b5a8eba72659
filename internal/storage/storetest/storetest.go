// Package storetest holds behaviour tests shared by every storage.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

// Run exercises store against the storage.Store contract.
// newStore must return an empty store; it is called once per subtest.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	setup := func(t *testing.T) (storage.Store, *models.Group) {
		t.Helper()
		store := newStore(t)
		group := &models.Group{Name: "Lisbon"}
		if err := store.CreateGroup(ctx, group); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		for _, id := range []string{"carol", "alice", "bob"} {
			m := &models.Member{ID: id, GroupID: group.ID, DisplayName: id, Role: models.RoleMember}
			if err := store.AddMember(ctx, m); err != nil {
				t.Fatalf("AddMember(%s) failed: %v", id, err)
			}
		}
		return store, group
	}

	t.Run("CreateGroup generates ID and timestamp", func(t *testing.T) {
		store := newStore(t)
		group := &models.Group{Name: "Roommates", TripID: "trip-1"}
		if err := store.CreateGroup(ctx, group); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		if group.ID == "" {
			t.Error("Expected group ID to be generated")
		}
		if group.CreatedAt == 0 {
			t.Error("Expected CreatedAt to be set")
		}

		got, err := store.GetGroup(ctx, group.ID)
		if err != nil {
			t.Fatalf("GetGroup failed: %v", err)
		}
		if got.Name != "Roommates" || got.TripID != "trip-1" {
			t.Errorf("GetGroup = %+v, want name Roommates and trip trip-1", got)
		}
	})

	t.Run("GetGroup returns NotFound", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetGroup(ctx, "nonexistent-id")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetGroup error = %v, want NotFound", err)
		}
	})

	t.Run("ListMembers is ordered by ID", func(t *testing.T) {
		store, group := setup(t)
		members, err := store.ListMembers(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListMembers failed: %v", err)
		}
		if len(members) != 3 {
			t.Fatalf("Expected 3 members, got %d", len(members))
		}
		for i, want := range []string{"alice", "bob", "carol"} {
			if members[i].ID != want {
				t.Errorf("members[%d] = %s, want %s", i, members[i].ID, want)
			}
		}
	})

	t.Run("AddMember keeps virtual flag and role", func(t *testing.T) {
		store, group := setup(t)
		m := &models.Member{ID: "grandma", GroupID: group.ID, DisplayName: "Grandma", Role: models.RoleAdmin, Virtual: true}
		if err := store.AddMember(ctx, m); err != nil {
			t.Fatalf("AddMember failed: %v", err)
		}
		members, _ := store.ListMembers(ctx, group.ID)
		var found *models.Member
		for i := range members {
			if members[i].ID == "grandma" {
				found = &members[i]
			}
		}
		if found == nil {
			t.Fatal("virtual member not listed")
		}
		if !found.Virtual || found.Role != models.RoleAdmin {
			t.Errorf("member = %+v, want virtual admin", found)
		}
	})

	t.Run("AddMember rejects duplicates and unknown groups", func(t *testing.T) {
		store, group := setup(t)
		err := store.AddMember(ctx, &models.Member{ID: "alice", GroupID: group.ID, DisplayName: "Alice"})
		if !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("duplicate AddMember error = %v, want Conflict", err)
		}
		err = store.AddMember(ctx, &models.Member{ID: "zed", GroupID: "missing", DisplayName: "Zed"})
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("AddMember to missing group error = %v, want NotFound", err)
		}
	})

	t.Run("CreateExpenseWithSplits round trip", func(t *testing.T) {
		store, group := setup(t)
		expense := &models.Expense{
			GroupID:  group.ID,
			Title:    "Dinner",
			Amount:   9000,
			PaidBy:   "alice",
			Category: "food",
			Date:     1700000000,
			Splits: []models.Split{
				{MemberID: "alice", Amount: 3000},
				{MemberID: "bob", Amount: 3000},
				{MemberID: "carol", Amount: 3000},
			},
		}
		if err := store.CreateExpenseWithSplits(ctx, expense); err != nil {
			t.Fatalf("CreateExpenseWithSplits failed: %v", err)
		}
		if expense.ID == "" {
			t.Error("Expected expense ID to be generated")
		}

		expenses, err := store.ListExpenses(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 1 {
			t.Fatalf("Expected 1 expense, got %d", len(expenses))
		}
		got := expenses[0]
		if got.Amount != 9000 || got.PaidBy != "alice" || got.Category != "food" || got.Date != 1700000000 {
			t.Errorf("expense = %+v", got)
		}
		if len(got.Splits) != 3 {
			t.Fatalf("Expected 3 splits, got %d", len(got.Splits))
		}
		if got.SplitTotal() != 9000 {
			t.Errorf("split total = %d, want 9000", got.SplitTotal())
		}
		for _, sp := range got.Splits {
			if sp.ExpenseID != expense.ID {
				t.Errorf("split expense id = %s, want %s", sp.ExpenseID, expense.ID)
			}
		}
	})

	t.Run("CreateExpenseWithSplits is atomic", func(t *testing.T) {
		store, group := setup(t)
		expense := &models.Expense{
			GroupID: group.ID,
			Title:   "Broken",
			Amount:  200,
			PaidBy:  "alice",
			Splits: []models.Split{
				{MemberID: "alice", Amount: 100},
				{MemberID: "alice", Amount: 100},
			},
		}
		if err := store.CreateExpenseWithSplits(ctx, expense); err == nil {
			t.Fatal("expected duplicate split member to fail")
		}
		expenses, err := store.ListExpenses(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListExpenses failed: %v", err)
		}
		if len(expenses) != 0 {
			t.Errorf("Expected no expenses after failed insert, got %d", len(expenses))
		}
	})

	t.Run("settlement lifecycle", func(t *testing.T) {
		store, group := setup(t)
		st := &models.Settlement{GroupID: group.ID, From: "bob", To: "alice", Amount: 3000, CreatedBy: "bob"}
		if err := store.CreateSettlement(ctx, st); err != nil {
			t.Fatalf("CreateSettlement failed: %v", err)
		}
		if st.Status != models.StatusPending {
			t.Errorf("status = %s, want pending", st.Status)
		}

		dup := &models.Settlement{GroupID: group.ID, From: "bob", To: "alice", Amount: 100, CreatedBy: "bob"}
		if err := store.CreateSettlement(ctx, dup); !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("second pending claim error = %v, want Conflict", err)
		}

		// The reverse pair is a different edge.
		rev := &models.Settlement{GroupID: group.ID, From: "alice", To: "bob", Amount: 100, CreatedBy: "alice"}
		if err := store.CreateSettlement(ctx, rev); err != nil {
			t.Errorf("reverse pair claim failed: %v", err)
		}

		if err := store.UpdateSettlementStatus(ctx, st.ID, models.StatusCompleted, 1700000500); err != nil {
			t.Fatalf("UpdateSettlementStatus failed: %v", err)
		}
		got, err := store.GetSettlement(ctx, st.ID)
		if err != nil {
			t.Fatalf("GetSettlement failed: %v", err)
		}
		if got.Status != models.StatusCompleted || got.CompletedAt != 1700000500 {
			t.Errorf("settlement = %+v, want completed at 1700000500", got)
		}

		err = store.UpdateSettlementStatus(ctx, st.ID, models.StatusCancelled, 1700000600)
		if !errors.Is(err, apperr.ErrConflict) {
			t.Errorf("update of terminal settlement error = %v, want Conflict", err)
		}
		got, _ = store.GetSettlement(ctx, st.ID)
		if got.Status != models.StatusCompleted {
			t.Errorf("terminal settlement changed to %s", got.Status)
		}

		// Once the first claim is terminal the pair may be claimed again.
		again := &models.Settlement{GroupID: group.ID, From: "bob", To: "alice", Amount: 500, CreatedBy: "bob"}
		if err := store.CreateSettlement(ctx, again); err != nil {
			t.Errorf("claim after completion failed: %v", err)
		}

		list, err := store.ListSettlements(ctx, group.ID)
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(list) != 3 {
			t.Errorf("Expected 3 settlements, got %d", len(list))
		}
	})

	t.Run("settlement not found", func(t *testing.T) {
		store, _ := setup(t)
		if _, err := store.GetSettlement(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("GetSettlement error = %v, want NotFound", err)
		}
		err := store.UpdateSettlementStatus(ctx, "missing", models.StatusCompleted, 1)
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("UpdateSettlementStatus error = %v, want NotFound", err)
		}
	})

	t.Run("member references", func(t *testing.T) {
		store, group := setup(t)
		expense := &models.Expense{
			GroupID: group.ID, Title: "Taxi", Amount: 1000, PaidBy: "alice",
			Splits: []models.Split{{MemberID: "alice", Amount: 500}, {MemberID: "bob", Amount: 500}},
		}
		if err := store.CreateExpenseWithSplits(ctx, expense); err != nil {
			t.Fatalf("CreateExpenseWithSplits failed: %v", err)
		}

		tests := []struct {
			member string
			want   bool
		}{
			{"alice", true}, // payer
			{"bob", true},   // split
			{"carol", false},
		}
		for _, tt := range tests {
			got, err := store.MemberReferenced(ctx, group.ID, tt.member)
			if err != nil {
				t.Fatalf("MemberReferenced(%s) failed: %v", tt.member, err)
			}
			if got != tt.want {
				t.Errorf("MemberReferenced(%s) = %v, want %v", tt.member, got, tt.want)
			}
		}

		if err := store.RemoveMember(ctx, group.ID, "carol"); err != nil {
			t.Fatalf("RemoveMember failed: %v", err)
		}
		members, _ := store.ListMembers(ctx, group.ID)
		if len(members) != 2 {
			t.Errorf("Expected 2 members after removal, got %d", len(members))
		}
		if err := store.RemoveMember(ctx, group.ID, "carol"); !errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("second RemoveMember error = %v, want NotFound", err)
		}
	})

	t.Run("groups are isolated", func(t *testing.T) {
		store, group := setup(t)
		other := &models.Group{Name: "Other"}
		if err := store.CreateGroup(ctx, other); err != nil {
			t.Fatalf("CreateGroup failed: %v", err)
		}
		st := &models.Settlement{GroupID: group.ID, From: "bob", To: "alice", Amount: 10, CreatedBy: "bob"}
		if err := store.CreateSettlement(ctx, st); err != nil {
			t.Fatalf("CreateSettlement failed: %v", err)
		}
		list, err := store.ListSettlements(ctx, other.ID)
		if err != nil {
			t.Fatalf("ListSettlements failed: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("other group sees %d settlements", len(list))
		}
		members, _ := store.ListMembers(ctx, other.ID)
		if len(members) != 0 {
			t.Errorf("other group sees %d members", len(members))
		}
	})
}
