package calculator

import (
	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
)

// Balance represents the balance information for one group member.
type Balance struct {
	MemberID  string
	TotalPaid int64 // Total amount paid across all expenses
	TotalOwed int64 // Total share of all expenses attributed to this member
	Balance   int64 // Positive = owed money, Negative = owes money
}

// Aggregate computes per-member balances for a group.
//
// Algorithm:
//   - For each expense: payer contributed +amount
//   - For each split: the member owes split.amount
//   - balance = total_paid - total_owed
//
// Every member appears in the result, including members with no activity.
// A payer or split member that is not in members is a validation error:
// dropping it would break the zero-sum invariant.
func Aggregate(members []models.Member, expenses []models.Expense) (map[string]Balance, error) {
	const op = "calculator.Aggregate"

	balances := make(map[string]*Balance, len(members))
	for _, m := range members {
		balances[m.ID] = &Balance{MemberID: m.ID}
	}

	for _, e := range expenses {
		payer, ok := balances[e.PaidBy]
		if !ok {
			return nil, apperr.Validation(op, "expense %s paid by unknown member %q", e.ID, e.PaidBy)
		}
		payer.TotalPaid += e.Amount

		for _, s := range e.Splits {
			owner, ok := balances[s.MemberID]
			if !ok {
				return nil, apperr.Validation(op, "expense %s split references unknown member %q", e.ID, s.MemberID)
			}
			owner.TotalOwed += s.Amount
		}
	}

	result := make(map[string]Balance, len(balances))
	for id, b := range balances {
		b.Balance = b.TotalPaid - b.TotalOwed
		result[id] = *b
	}
	return result, nil
}

// NetBalances projects aggregated balances onto the net amounts the
// simplifier consumes.
func NetBalances(balances map[string]Balance) map[string]int64 {
	net := make(map[string]int64, len(balances))
	for id, b := range balances {
		net[id] = b.Balance
	}
	return net
}
