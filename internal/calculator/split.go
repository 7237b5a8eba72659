package calculator

import (
	"math"
	"math/bits"
	"slices"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
)

// EqualSplits divides amount evenly among members, in minor units.
// Remainder units go one each to the first members in ascending id order,
// so the splits always sum to exactly amount.
func EqualSplits(amount int64, memberIDs []string) ([]models.Split, error) {
	const op = "calculator.EqualSplits"

	if amount == 0 {
		return nil, apperr.Validation(op, "amount cannot be zero")
	}
	if amount == math.MinInt64 {
		return nil, apperr.Validation(op, "amount %d is out of range", amount)
	}
	if len(memberIDs) == 0 {
		return nil, apperr.Validation(op, "must have at least one member")
	}

	ids := slices.Clone(memberIDs)
	slices.Sort(ids)
	if dup := firstDuplicate(ids); dup != "" {
		return nil, apperr.Validation(op, "member %q listed twice", dup)
	}

	sign, abs := signAbs(amount)
	n := int64(len(ids))
	base, rem := abs/n, abs%n

	splits := make([]models.Split, len(ids))
	for i, id := range ids {
		share := base
		if int64(i) < rem {
			share++
		}
		splits[i] = models.Split{MemberID: id, Amount: sign * share}
	}
	return splits, nil
}

// WeightedSplits divides amount proportionally to integer weights
// (e.g. nights stayed, shares). Rounding uses the largest-remainder method
// with ascending member id as the tie-break.
func WeightedSplits(amount int64, weights map[string]int64) ([]models.Split, error) {
	const op = "calculator.WeightedSplits"

	if amount == 0 {
		return nil, apperr.Validation(op, "amount cannot be zero")
	}
	if amount == math.MinInt64 {
		return nil, apperr.Validation(op, "amount %d is out of range", amount)
	}
	if len(weights) == 0 {
		return nil, apperr.Validation(op, "must have at least one member")
	}

	ids := make([]string, 0, len(weights))
	var total int64
	for id, w := range weights {
		if w < 0 {
			return nil, apperr.Validation(op, "weight for %q cannot be negative", id)
		}
		if w > math.MaxInt64-total {
			return nil, apperr.Validation(op, "weights are too large")
		}
		ids = append(ids, id)
		total += w
	}
	if total == 0 {
		return nil, apperr.Validation(op, "weights cannot all be zero")
	}
	slices.Sort(ids)

	sign, abs := signAbs(amount)
	shares := make([]int64, len(ids))
	remainders := make([]int64, len(ids))
	var assigned int64
	for i, id := range ids {
		// abs*w/total <= abs, so the 128-bit quotient always fits.
		hi, lo := bits.Mul64(uint64(abs), uint64(weights[id]))
		q, r := bits.Div64(hi, lo, uint64(total))
		shares[i], remainders[i] = int64(q), int64(r)
		assigned += shares[i]
	}

	order := make([]int, len(ids))
	for i := range order {
		order[i] = i
	}
	// Stable sort keeps ascending id order among equal remainders.
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case remainders[a] > remainders[b]:
			return -1
		case remainders[a] < remainders[b]:
			return 1
		}
		return 0
	})
	for k := int64(0); k < abs-assigned; k++ {
		shares[order[k]]++
	}

	splits := make([]models.Split, len(ids))
	for i, id := range ids {
		splits[i] = models.Split{MemberID: id, Amount: sign * shares[i]}
	}
	return splits, nil
}

// ValidateExpense checks an expense and its splits before they are persisted.
// Splits must sum to the expense amount within models.Epsilon, which for
// integer minor units means exactly.
func ValidateExpense(e models.Expense) error {
	const op = "calculator.ValidateExpense"

	if e.Amount == 0 {
		return apperr.Validation(op, "amount cannot be zero")
	}
	if e.PaidBy == "" {
		return apperr.Validation(op, "payer is required")
	}
	if len(e.Splits) == 0 {
		return apperr.Validation(op, "expense must have at least one split")
	}

	seen := make(map[string]bool, len(e.Splits))
	for _, s := range e.Splits {
		if s.MemberID == "" {
			return apperr.Validation(op, "split member is required")
		}
		if seen[s.MemberID] {
			return apperr.Validation(op, "member %q has more than one split", s.MemberID)
		}
		seen[s.MemberID] = true
		if (e.Amount > 0 && s.Amount < 0) || (e.Amount < 0 && s.Amount > 0) {
			return apperr.Validation(op, "split for %q has the wrong sign", s.MemberID)
		}
	}

	diff := e.SplitTotal() - e.Amount
	if diff >= models.Epsilon || diff <= -models.Epsilon {
		return apperr.Validation(op, "splits sum to %d, expense amount is %d", e.SplitTotal(), e.Amount)
	}
	return nil
}

func signAbs(v int64) (int64, int64) {
	if v < 0 {
		return -1, -v
	}
	return 1, v
}

func firstDuplicate(sorted []string) string {
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return sorted[i]
		}
	}
	return ""
}
