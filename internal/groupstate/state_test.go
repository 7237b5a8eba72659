package groupstate

import (
	"errors"
	"testing"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

func members(ids ...string) []models.Member {
	out := make([]models.Member, len(ids))
	for i, id := range ids {
		out[i] = models.Member{ID: id, GroupID: "g"}
	}
	return out
}

func even(id, payer string, amount int64, ids ...string) models.Expense {
	splits, err := calculator.EqualSplits(amount, ids)
	if err != nil {
		panic(err)
	}
	return models.Expense{ID: id, GroupID: "g", PaidBy: payer, Amount: amount, Splits: splits}
}

func TestDeriveExampleGroup(t *testing.T) {
	expenses := []models.Expense{
		even("e1", "A", 300, "A", "B", "C"),
		even("e2", "B", 150, "A", "B", "C"),
	}
	s, err := Derive(models.Group{ID: "g"}, members("A", "B", "C"), expenses, nil)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	want := map[string]int64{"A": 150, "B": 0, "C": -150}
	for id, b := range want {
		if s.Balances[id].Balance != b {
			t.Errorf("balance[%s] = %d, want %d", id, s.Balances[id].Balance, b)
		}
	}

	debts := s.OutstandingDebts()
	if len(debts) != 1 || debts[0] != (calculator.DebtEdge{From: "C", To: "A", Amount: 150}) {
		t.Errorf("debts = %+v, want [C->A 150]", debts)
	}
}

func TestDeriveAppliesCompletedSettlements(t *testing.T) {
	expenses := []models.Expense{even("e1", "A", 300, "A", "B", "C")}
	settlements := []models.Settlement{
		{ID: "s1", From: "B", To: "A", Amount: 100, Status: models.StatusCompleted},
		{ID: "s2", From: "C", To: "A", Amount: 40, Status: models.StatusPending},
	}
	s, err := Derive(models.Group{ID: "g"}, members("A", "B", "C"), expenses, settlements)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	debts := s.OutstandingDebts()
	if len(debts) != 1 || debts[0].From != "C" || debts[0].Amount != 100 {
		t.Errorf("debts = %+v, want [C->A 100]", debts)
	}
	if st, ok := s.Settlement("s2"); !ok || st.Status != models.StatusPending {
		t.Errorf("Settlement(s2) = %+v, %v", st, ok)
	}
	if _, ok := s.Settlement("missing"); ok {
		t.Error("Settlement(missing) found")
	}
}

func TestDeriveRejectsUnknownMember(t *testing.T) {
	expenses := []models.Expense{even("e1", "Z", 100, "A", "B")}
	_, err := Derive(models.Group{ID: "g"}, members("A", "B"), expenses, nil)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("Derive error = %v, want Validation", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	expenses := []models.Expense{even("e1", "A", 200, "A", "B")}
	s, err := Derive(models.Group{ID: "g"}, members("A", "B"), expenses, nil)
	if err != nil {
		t.Fatalf("Derive failed: %v", err)
	}

	c := s.Clone()
	c.Expenses[0].Splits[0].Amount = 0
	c.Members = append(c.Members, models.Member{ID: "C"})
	c.Settlements = append(c.Settlements, models.Settlement{ID: "s"})

	if s.Expenses[0].Splits[0].Amount != 100 {
		t.Errorf("clone mutated original split: %+v", s.Expenses[0].Splits)
	}
	if len(s.Members) != 2 || len(s.Settlements) != 0 {
		t.Error("clone mutated original slices")
	}
	if !c.HasMember("C") || s.HasMember("C") {
		t.Error("HasMember does not reflect the clone")
	}

	b := c.Balances["A"]
	b.Balance = 999999
	c.Balances["A"] = b
	delete(c.Balances, "B")
	if s.Balances["A"].Balance != 100 || len(s.Balances) != 2 {
		t.Errorf("clone mutated original balances: %+v", s.Balances)
	}
}
