// Package settlement tracks which simplified debts have actually been paid.
//
// Each ordered (from, to) pair in a group moves through:
//
//	Open -> Pending   debtor marks the transfer as paid
//	Pending -> Completed   creditor confirms receipt (terminal)
//	Pending -> Cancelled   debtor retracts or creditor rejects (terminal, pair returns to Open)
//
// The outstanding amount for a pair is the debt edge minus all completed
// settlements for that pair, so partial payments leave the remainder open
// and claimable again. Terminal rows are never modified.
package settlement
