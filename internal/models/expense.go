package models

// Expense is an amount paid by exactly one member on behalf of the group.
//
// Expenses are immutable once created except for Title and Description.
// Amount corrections are recorded as new compensating expenses.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group that owns this expense.
	GroupID string

	// Title is the short label (e.g., "Dinner at Ramiro").
	Title string

	// Description is an optional longer note.
	Description string

	// Amount is the total paid, in minor currency units.
	// Negative amounts are allowed for compensating entries.
	Amount int64

	// PaidBy is the member ID of the payer.
	PaidBy string

	// Category is a free-form category label (e.g., "food", "lodging").
	Category string

	// Date is the Unix timestamp when the expense happened.
	Date int64

	// ItineraryItemID optionally ties the expense to an itinerary item.
	ItineraryItemID string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// Splits are the per-member shares. Their amounts sum to Amount.
	Splits []Split
}

// Split is the portion of one expense attributed to one member.
type Split struct {
	ExpenseID string
	MemberID  string
	Amount    int64
}

// SplitTotal returns the sum of all split amounts.
func (e *Expense) SplitTotal() int64 {
	var total int64
	for _, s := range e.Splits {
		total += s.Amount
	}
	return total
}
