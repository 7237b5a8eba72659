package optimistic

import (
	"testing"
	"time"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/groupstate"
	"github.com/mmynk/tripledger/internal/models"
)

// baseState is the example group: C owes A 150.
func baseState(t *testing.T) *groupstate.State {
	t.Helper()
	members := []models.Member{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	split := func(amount int64) []models.Split {
		s, _ := calculator.EqualSplits(amount, []string{"A", "B", "C"})
		return s
	}
	expenses := []models.Expense{
		{ID: "e1", PaidBy: "A", Amount: 300, Splits: split(300)},
		{ID: "e2", PaidBy: "B", Amount: 150, Splits: split(150)},
	}
	s, err := groupstate.Derive(models.Group{ID: "g"}, members, expenses, nil)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}
	return s
}

func TestViewEmptyQueue(t *testing.T) {
	q := NewQueue(nil)
	if v := q.View(baseState(t)); v != nil {
		t.Errorf("View with empty queue = %+v, want nil", v)
	}
}

func TestViewAppliesExpenseWithoutTouchingBase(t *testing.T) {
	q := NewQueue(nil)
	base := baseState(t)
	splits, _ := calculator.EqualSplits(300, []string{"A", "B", "C"})
	q.Push("g", RecordExpense{Expense: models.Expense{ID: "e3", PaidBy: "C", Amount: 300, Splits: splits}})

	view := q.View(base)
	if view == nil {
		t.Fatal("View returned nil with a queued command")
	}
	// C paid 300 for everyone: A=50, B=-100, C=50.
	if got := view.Balances["C"].Balance; got != 50 {
		t.Errorf("optimistic balance[C] = %d, want 50", got)
	}
	if got := base.Balances["C"].Balance; got != -150 {
		t.Errorf("authoritative balance[C] = %d, want -150", got)
	}
	if len(base.Expenses) != 2 {
		t.Errorf("base has %d expenses, want 2", len(base.Expenses))
	}
}

func TestViewClaimAndConfirm(t *testing.T) {
	q := NewQueue(nil)
	base := baseState(t)
	q.Push("g", Claim{Settlement: models.Settlement{ID: "s1", GroupID: "g", From: "C", To: "A", Amount: 150, CreatedBy: "C"}})
	q.Push("g", Resolve{SettlementID: "s1", Target: models.StatusCompleted, Actor: "A", At: 10})

	view := q.View(base)
	if debts := view.OutstandingDebts(); len(debts) != 0 {
		t.Errorf("optimistic debts = %+v, want none", debts)
	}
	if debts := base.OutstandingDebts(); len(debts) != 1 {
		t.Errorf("authoritative debts = %+v, want one edge", debts)
	}
}

func TestViewSkipsCommandsThatNoLongerApply(t *testing.T) {
	q := NewQueue(nil)
	base := baseState(t)
	// Over-claim and a transition for an unknown settlement are both skipped.
	q.Push("g", Claim{Settlement: models.Settlement{ID: "s1", From: "C", To: "A", Amount: 500, CreatedBy: "C"}})
	q.Push("g", Resolve{SettlementID: "missing", Target: models.StatusCancelled, Actor: "C"})
	q.Push("g", Claim{Settlement: models.Settlement{ID: "s2", From: "C", To: "A", Amount: 50, CreatedBy: "C"}})

	view := q.View(base)
	if len(view.Settlements) != 1 || view.Settlements[0].ID != "s2" {
		t.Errorf("optimistic settlements = %+v, want only s2", view.Settlements)
	}
	if q.Len("g") != 3 {
		t.Errorf("skipped commands removed from queue: len = %d", q.Len("g"))
	}
}

func TestCommitDropReconcile(t *testing.T) {
	q := NewQueue(nil)
	t0 := time.Unix(1000, 0)

	a := q.Push("g", RecordExpense{})
	b := q.Push("g", RecordExpense{})
	c := q.Push("g", RecordExpense{})
	q.Push("other", RecordExpense{})

	q.Drop("g", b)
	if q.Len("g") != 2 {
		t.Fatalf("Len after Drop = %d, want 2", q.Len("g"))
	}

	q.Commit("g", a, t0)
	q.Commit("g", c, t0.Add(time.Minute))

	// A snapshot fetched before either commit discards nothing.
	q.Reconcile("g", t0.Add(-time.Second))
	if q.Len("g") != 2 {
		t.Errorf("Len after early Reconcile = %d, want 2", q.Len("g"))
	}

	// A snapshot fetched at the first commit contains it.
	q.Reconcile("g", t0)
	if q.Len("g") != 1 {
		t.Errorf("Len after Reconcile = %d, want 1", q.Len("g"))
	}

	q.Reconcile("g", t0.Add(time.Hour))
	if q.Len("g") != 0 {
		t.Errorf("Len after late Reconcile = %d, want 0", q.Len("g"))
	}
	if q.Len("other") != 1 {
		t.Errorf("other group affected: len = %d", q.Len("other"))
	}
}

func TestReconcileKeepsInFlightCommands(t *testing.T) {
	q := NewQueue(nil)
	q.Push("g", RecordExpense{})
	q.Reconcile("g", time.Now().Add(time.Hour))
	if q.Len("g") != 1 {
		t.Errorf("uncommitted command discarded: len = %d", q.Len("g"))
	}
}
