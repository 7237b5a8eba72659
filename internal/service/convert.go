package service

import (
	"slices"
	"strings"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/groupstate"
	"github.com/mmynk/tripledger/internal/models"
)

func toGroup(g models.Group) Group {
	return Group{ID: g.ID, Name: g.Name, TripID: g.TripID, CreatedAt: g.CreatedAt}
}

func toMember(m models.Member) Member {
	return Member{
		ID:          m.ID,
		GroupID:     m.GroupID,
		DisplayName: m.DisplayName,
		Role:        string(m.Role),
		AvatarRef:   m.AvatarRef,
		Virtual:     m.Virtual,
	}
}

func toExpense(e models.Expense) Expense {
	splits := make([]Split, len(e.Splits))
	for i, s := range e.Splits {
		splits[i] = Split{MemberID: s.MemberID, Amount: s.Amount}
	}
	return Expense{
		ID:              e.ID,
		GroupID:         e.GroupID,
		Title:           e.Title,
		Description:     e.Description,
		Amount:          e.Amount,
		AmountDisplay:   models.FormatAmount(e.Amount),
		PaidBy:          e.PaidBy,
		Category:        e.Category,
		Date:            e.Date,
		ItineraryItemID: e.ItineraryItemID,
		CreatedAt:       e.CreatedAt,
		Splits:          splits,
	}
}

func toSettlement(s models.Settlement) Settlement {
	return Settlement{
		ID:            s.ID,
		GroupID:       s.GroupID,
		From:          s.From,
		To:            s.To,
		Amount:        s.Amount,
		AmountDisplay: models.FormatAmount(s.Amount),
		Status:        string(s.Status),
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt,
		CompletedAt:   s.CompletedAt,
	}
}

// toBalances returns balances ordered by member ID.
func toBalances(balances map[string]calculator.Balance) []Balance {
	out := make([]Balance, 0, len(balances))
	for _, b := range balances {
		out = append(out, Balance{
			MemberID:       b.MemberID,
			TotalPaid:      b.TotalPaid,
			TotalOwed:      b.TotalOwed,
			Balance:        b.Balance,
			BalanceDisplay: models.FormatAmount(b.Balance),
		})
	}
	slices.SortFunc(out, func(a, b Balance) int { return strings.Compare(a.MemberID, b.MemberID) })
	return out
}

func toDebts(edges []calculator.DebtEdge) []Debt {
	out := make([]Debt, len(edges))
	for i, e := range edges {
		out[i] = Debt{From: e.From, To: e.To, Amount: e.Amount, AmountDisplay: models.FormatAmount(e.Amount)}
	}
	return out
}

func toLedger(s *groupstate.State) Ledger {
	l := Ledger{
		Members:     make([]Member, len(s.Members)),
		Expenses:    make([]Expense, len(s.Expenses)),
		Settlements: make([]Settlement, len(s.Settlements)),
		Balances:    toBalances(s.Balances),
		Outstanding: make([]OutstandingDebt, len(s.Outstanding)),
	}
	for i, m := range s.Members {
		l.Members[i] = toMember(m)
	}
	for i, e := range s.Expenses {
		l.Expenses[i] = toExpense(e)
	}
	for i, st := range s.Settlements {
		l.Settlements[i] = toSettlement(st)
	}
	for i, o := range s.Outstanding {
		row := OutstandingDebt{
			From:             o.From,
			To:               o.To,
			Amount:           o.Amount,
			Settled:          o.Settled,
			Remaining:        o.Remaining,
			RemainingDisplay: models.FormatAmount(o.Remaining),
		}
		if o.Pending != nil {
			row.PendingSettlementID = o.Pending.ID
		}
		l.Outstanding[i] = row
	}
	return l
}
