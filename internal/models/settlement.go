package models

// SettlementStatus is the lifecycle state of a settlement row.
type SettlementStatus string

const (
	// StatusPending means the debtor marked the transfer as paid and the
	// creditor has not yet confirmed it.
	StatusPending SettlementStatus = "pending"

	// StatusCompleted means the creditor confirmed receipt. Terminal.
	StatusCompleted SettlementStatus = "completed"

	// StatusCancelled means either party retracted the claim. Terminal.
	StatusCancelled SettlementStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s SettlementStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s SettlementStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Settlement represents a claim that a transfer between two members happened.
// It is tied to a debt edge by its (From, To) pair, not by identity.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// From is the member who paid (debtor settling up).
	From string

	// To is the member who received payment (creditor being paid).
	To string

	// Amount is the claimed payment, in minor currency units.
	Amount int64

	// Status is the current lifecycle state.
	Status SettlementStatus

	// CreatedBy is the member ID who recorded the claim.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the claim was recorded.
	CreatedAt int64

	// CompletedAt is the Unix timestamp of the terminal transition, or 0.
	CompletedAt int64
}
