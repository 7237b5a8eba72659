// Package groupstate holds the derived ledger view of one group and the
// pipeline that produces it from persisted rows.
package groupstate

import (
	"maps"
	"slices"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/settlement"
)

// State is everything a reader needs to show a group's ledger.
// Persisted rows and derived values travel together so they never disagree.
type State struct {
	Group       models.Group
	Members     []models.Member
	Expenses    []models.Expense
	Settlements []models.Settlement

	// Balances is keyed by member ID and contains every member.
	Balances map[string]calculator.Balance
	// Debts are the simplified edges before settlements are applied.
	Debts []calculator.DebtEdge
	// Outstanding is Debts with settlement progress overlaid.
	Outstanding []settlement.Outstanding
}

// Derive runs aggregate, simplify and overlay over the persisted rows.
// The slices are owned by the returned State.
func Derive(group models.Group, members []models.Member, expenses []models.Expense, settlements []models.Settlement) (*State, error) {
	balances, err := calculator.Aggregate(members, expenses)
	if err != nil {
		return nil, err
	}
	net := calculator.NetBalances(balances)
	debts, err := calculator.Simplify(net)
	if err != nil {
		return nil, err
	}
	outstanding, err := settlement.Overlay(net, debts, settlements)
	if err != nil {
		return nil, err
	}
	return &State{
		Group:       group,
		Members:     members,
		Expenses:    expenses,
		Settlements: settlements,
		Balances:    balances,
		Debts:       debts,
		Outstanding: outstanding,
	}, nil
}

// Rederive recomputes the derived fields from the rows of s.
func (s *State) Rederive() (*State, error) {
	return Derive(s.Group, s.Members, s.Expenses, s.Settlements)
}

// OutstandingDebts returns the pairs that can still be claimed, with the remaining amount.
func (s *State) OutstandingDebts() []calculator.DebtEdge {
	return settlement.OutstandingDebts(s.Outstanding)
}

// Settlement returns the settlement with the given ID.
func (s *State) Settlement(id string) (models.Settlement, bool) {
	i := slices.IndexFunc(s.Settlements, func(st models.Settlement) bool { return st.ID == id })
	if i < 0 {
		return models.Settlement{}, false
	}
	return s.Settlements[i], true
}

// HasMember reports whether id belongs to the group.
func (s *State) HasMember(id string) bool {
	return slices.ContainsFunc(s.Members, func(m models.Member) bool { return m.ID == id })
}

// Clone returns a deep copy of s. Derived fields are copied as they are;
// call Rederive after editing rows.
func (s *State) Clone() *State {
	expenses := make([]models.Expense, len(s.Expenses))
	for i, e := range s.Expenses {
		e.Splits = slices.Clone(e.Splits)
		expenses[i] = e
	}
	outstanding := slices.Clone(s.Outstanding)
	for i := range outstanding {
		if p := outstanding[i].Pending; p != nil {
			pending := *p
			outstanding[i].Pending = &pending
		}
	}
	return &State{
		Group:       s.Group,
		Members:     slices.Clone(s.Members),
		Expenses:    expenses,
		Settlements: slices.Clone(s.Settlements),
		Balances:    maps.Clone(s.Balances),
		Debts:       slices.Clone(s.Debts),
		Outstanding: outstanding,
	}
}
