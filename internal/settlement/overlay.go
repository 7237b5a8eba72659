package settlement

import (
	"slices"
	"strings"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

// Outstanding is a simplified debt with settlement progress applied.
type Outstanding struct {
	From string
	To   string
	// Amount is the simplified debt for the pair.
	Amount int64
	// Settled is the sum of completed settlements counted against Amount.
	Settled int64
	// Remaining is Amount - Settled. Zero when the pair is fully settled.
	Remaining int64
	// Pending is the open claim for the pair, if any.
	Pending *models.Settlement
}

// Open reports whether part of the debt can still be claimed.
func (o Outstanding) Open() bool {
	return o.Remaining > 0
}

type pair struct{ from, to string }

// Overlay applies settlements to the simplified debt edges.
//
// Completed settlements are subtracted from the edge of the same ordered
// pair. When a completed amount no longer fits its pair (new expenses
// reshaped the simplified edges since it was paid), all completed
// settlements are netted into the balances instead and the result is
// simplified again, so a recorded payment is never lost.
//
// Pending claims whose pair has no edge are still returned with a zero
// amount so the counterparties can resolve them.
func Overlay(balances map[string]int64, edges []calculator.DebtEdge, settlements []models.Settlement) ([]Outstanding, error) {
	completed := make(map[pair]int64)
	pending := make(map[pair]*models.Settlement)
	for _, s := range settlements {
		p := pair{s.From, s.To}
		switch s.Status {
		case models.StatusCompleted:
			completed[p] += s.Amount
		case models.StatusPending:
			pending[p] = &s
		}
	}

	edgeAmount := make(map[pair]int64, len(edges))
	for _, e := range edges {
		edgeAmount[pair{e.From, e.To}] += e.Amount
	}

	fits := true
	for p, paid := range completed {
		if paid > edgeAmount[p] {
			fits = false
			break
		}
	}

	var rows []Outstanding
	if fits {
		rows = make([]Outstanding, 0, len(edges))
		for _, e := range edges {
			p := pair{e.From, e.To}
			paid := completed[p]
			rows = append(rows, Outstanding{
				From:      e.From,
				To:        e.To,
				Amount:    e.Amount,
				Settled:   paid,
				Remaining: e.Amount - paid,
			})
		}
	} else {
		net := make(map[string]int64, len(balances))
		for id, b := range balances {
			net[id] = b
		}
		for p, paid := range completed {
			net[p.from] += paid
			net[p.to] -= paid
		}
		renetted, err := calculator.Simplify(net)
		if err != nil {
			return nil, err
		}
		rows = make([]Outstanding, 0, len(renetted))
		for _, e := range renetted {
			rows = append(rows, Outstanding{
				From:      e.From,
				To:        e.To,
				Amount:    e.Amount,
				Remaining: e.Amount,
			})
		}
	}

	seen := make(map[pair]bool, len(rows))
	for i := range rows {
		p := pair{rows[i].From, rows[i].To}
		seen[p] = true
		rows[i].Pending = pending[p]
	}

	var orphans []Outstanding
	for p, s := range pending {
		if !seen[p] {
			orphans = append(orphans, Outstanding{From: p.from, To: p.to, Pending: s})
		}
	}
	slices.SortFunc(orphans, func(a, b Outstanding) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})

	return append(rows, orphans...), nil
}

// OutstandingDebts returns the pairs that still have an open remainder,
// as debt edges carrying the remaining amount.
func OutstandingDebts(rows []Outstanding) []calculator.DebtEdge {
	var edges []calculator.DebtEdge
	for _, r := range rows {
		if r.Open() {
			edges = append(edges, calculator.DebtEdge{From: r.From, To: r.To, Amount: r.Remaining})
		}
	}
	return edges
}

// Find returns the row for an ordered pair.
func Find(rows []Outstanding, from, to string) (Outstanding, bool) {
	for _, r := range rows {
		if r.From == from && r.To == to {
			return r, true
		}
	}
	return Outstanding{}, false
}
