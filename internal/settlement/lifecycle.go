package settlement

import (
	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
)

// ValidateClaim checks that actor may mark amount as paid from -> to.
//
// Only the debtor may claim. A pair may have at most one pending claim, and
// the claim cannot exceed what is still outstanding for the pair.
func ValidateClaim(rows []Outstanding, actor, from, to string, amount int64) error {
	const op = "settlement.ValidateClaim"

	if actor != from {
		return apperr.Authorization(op, "only %q can mark this debt as paid", from)
	}
	if from == to {
		return apperr.Validation(op, "cannot settle a debt with yourself")
	}
	if amount <= 0 {
		return apperr.Validation(op, "amount must be positive, got %d", amount)
	}

	row, ok := Find(rows, from, to)
	if ok && row.Pending != nil {
		return apperr.Conflict(op, "settlement %s from %q to %q is already pending", row.Pending.ID, from, to)
	}
	if !ok || amount > row.Remaining {
		return apperr.Conflict(op, "amount %d exceeds outstanding %d from %q to %q", amount, row.Remaining, from, to)
	}
	return nil
}

// ValidateTransition checks that actor may move s to target.
//
// Completed is reachable only by the creditor confirming receipt.
// Cancelled is reachable by the debtor retracting or the creditor rejecting.
// Terminal settlements never transition again.
func ValidateTransition(s models.Settlement, target models.SettlementStatus, actor string) error {
	const op = "settlement.ValidateTransition"

	if !target.Terminal() {
		return apperr.Validation(op, "cannot transition settlement to %q", target)
	}
	if s.Status.Terminal() {
		return apperr.Conflict(op, "settlement %s is already %s", s.ID, s.Status)
	}

	switch target {
	case models.StatusCompleted:
		if actor != s.To {
			return apperr.Authorization(op, "only %q can confirm settlement %s", s.To, s.ID)
		}
	case models.StatusCancelled:
		if actor != s.From && actor != s.To {
			return apperr.Authorization(op, "only %q or %q can cancel settlement %s", s.From, s.To, s.ID)
		}
	}
	return nil
}

// Transition returns a copy of s moved to target at the given Unix time.
func Transition(s models.Settlement, target models.SettlementStatus, actor string, now int64) (models.Settlement, error) {
	if err := ValidateTransition(s, target, actor); err != nil {
		return s, err
	}
	s.Status = target
	s.CompletedAt = now
	return s, nil
}
