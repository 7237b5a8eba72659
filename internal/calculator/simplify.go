package calculator

import (
	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
)

// DebtEdge represents a debt from one member to another.
type DebtEdge struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount int64
}

type party struct {
	id     string
	amount int64 // remaining magnitude, always positive
}

// Simplify reduces net balances to a short list of transfers.
//
// Greedy algorithm: repeatedly match the largest remaining debt with the
// largest remaining credit, ties broken by ascending member id. Each step
// zeroes at least one party, so at most N-1 edges are produced for N members
// with a nonzero balance. Output is deterministic for a given input.
//
// Balances must sum to zero. An imbalance of at most models.Epsilon is
// tolerated as a rounding remainder and folded into the largest edge;
// anything larger is an invariant violation.
func Simplify(balances map[string]int64) ([]DebtEdge, error) {
	const op = "calculator.Simplify"

	var sum int64
	var creditors, debtors []party
	for id, b := range balances {
		sum += b
		switch {
		case b > 0:
			creditors = append(creditors, party{id: id, amount: b})
		case b < 0:
			debtors = append(debtors, party{id: id, amount: -b})
		}
	}
	if sum > models.Epsilon || sum < -models.Epsilon {
		return nil, apperr.Invariant(op, "balances sum to %d, want 0", sum)
	}

	var edges []DebtEdge
	for len(creditors) > 0 && len(debtors) > 0 {
		ci := largest(creditors)
		di := largest(debtors)

		amount := min(creditors[ci].amount, debtors[di].amount)
		edges = append(edges, DebtEdge{
			From:   debtors[di].id,
			To:     creditors[ci].id,
			Amount: amount,
		})

		creditors[ci].amount -= amount
		debtors[di].amount -= amount
		if creditors[ci].amount == 0 {
			creditors = remove(creditors, ci)
		}
		if debtors[di].amount == 0 {
			debtors = remove(debtors, di)
		}
	}

	// At most one side has a remainder left, bounded by Epsilon.
	var remainder int64
	for _, p := range creditors {
		remainder += p.amount
	}
	for _, p := range debtors {
		remainder += p.amount
	}
	if remainder != 0 && len(edges) > 0 {
		edges[largestEdge(edges)].Amount += remainder
	}

	return edges, nil
}

// Apply returns the balances that result from executing every edge as a
// completed transfer.
func Apply(balances map[string]int64, edges []DebtEdge) map[string]int64 {
	out := make(map[string]int64, len(balances))
	for id, b := range balances {
		out[id] = b
	}
	for _, e := range edges {
		out[e.From] += e.Amount
		out[e.To] -= e.Amount
	}
	return out
}

// largest returns the index of the party with the largest amount,
// preferring the lowest id on ties.
func largest(parties []party) int {
	best := 0
	for i := 1; i < len(parties); i++ {
		p, b := parties[i], parties[best]
		if p.amount > b.amount || (p.amount == b.amount && p.id < b.id) {
			best = i
		}
	}
	return best
}

func largestEdge(edges []DebtEdge) int {
	best := 0
	for i := 1; i < len(edges); i++ {
		if edges[i].Amount > edges[best].Amount {
			best = i
		}
	}
	return best
}

func remove(parties []party, i int) []party {
	parties[i] = parties[len(parties)-1]
	return parties[:len(parties)-1]
}
