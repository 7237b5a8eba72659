// Package models defines the core domain models for tripledger.
//
// # Stored Models
//
// The following models are persisted by the storage layer:
//   - Group: A set of members sharing expenses (optionally tied to a trip)
//   - Member: A participant in a group, either an account holder or a virtual placeholder
//   - Expense: An amount paid by one member, split across members
//   - Split: One member's share of one expense
//   - Settlement: A claim that a transfer between two members happened
//
// Balances and debt edges are derived on demand and never stored; see the
// calculator and settlement packages.
//
// # Design Principles
//
// 1. **Integer money**: Amounts are int64 minor currency units end-to-end
// 2. **Append-only ledger**: Expenses and splits are never rewritten; corrections are new expenses
// 3. **Avoid circular references**: Use ID strings instead of pointers for relationships
// 4. **Terminal settlements are immutable**: Completed and cancelled rows never change
//
// # Amounts at the Boundary
//
// ParseAmount and FormatAmount convert between user-facing decimal strings
// ("12.34") and minor units (1234). Nothing inside the ledger uses them.
package models
