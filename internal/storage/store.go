// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/mmynk/tripledger/internal/models"
)

// Store defines the persistence operations the ledger consumes.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL,
// in-memory) without changing the engine.
//
// Implementations report missing rows as apperr NotFound errors, broken
// uniqueness or lost races as Conflict errors, and infrastructure failures
// as retryable Transient errors.
type Store interface {
	// CreateGroup persists a new group.
	// The group.ID and CreatedAt fields will be populated if empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by its ID.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddMember adds a member to an existing group.
	AddMember(ctx context.Context, member *models.Member) error

	// RemoveMember deletes a member. Callers must check MemberReferenced first.
	RemoveMember(ctx context.Context, groupID, memberID string) error

	// MemberReferenced reports whether any expense, split or settlement
	// refers to the member.
	MemberReferenced(ctx context.Context, groupID, memberID string) (bool, error)

	// ListMembers returns a group's members ordered by ID.
	ListMembers(ctx context.Context, groupID string) ([]models.Member, error)

	// ListExpenses returns a group's expenses with their splits nested.
	ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error)

	// CreateExpenseWithSplits persists an expense and all of its splits
	// atomically: either everything is stored or nothing is.
	CreateExpenseWithSplits(ctx context.Context, expense *models.Expense) error

	// ListSettlements returns a group's settlements oldest first.
	ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error)

	// GetSettlement retrieves a settlement by ID.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// CreateSettlement persists a new pending settlement.
	// A second pending settlement for the same ordered pair is a Conflict.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error

	// UpdateSettlementStatus moves a pending settlement to a terminal status.
	// It fails with Conflict if the settlement is no longer pending.
	UpdateSettlementStatus(ctx context.Context, settlementID string, status models.SettlementStatus, completedAt int64) error

	// Close releases any resources held by the store.
	Close() error
}
