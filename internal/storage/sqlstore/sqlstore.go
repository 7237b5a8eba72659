// Package sqlstore implements storage.Store on database/sql.
// The sqlite and postgres packages open the database, run their migrations
// and hand the connection to New with the matching Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/storage"
)

var _ storage.Store = (*Store)(nil)

// Store implements storage.Store over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an open, migrated database.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q querier, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, q querier, query string, args ...any) *sql.Row {
	return q.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

// transient wraps an infrastructure failure.
func transient(op, what string, err error) error {
	return apperr.Transient(op, fmt.Errorf("failed to %s: %w", what, err))
}

func (s *Store) requireGroup(ctx context.Context, q querier, op, groupID string) error {
	var one int
	err := s.queryRow(ctx, q, "SELECT 1 FROM ledger_groups WHERE id = ?", groupID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(op, "group not found: %s", groupID)
	}
	if err != nil {
		return transient(op, "check group", err)
	}
	return nil
}

// CreateGroup persists a new group.
func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	const op = "sqlstore.CreateGroup"
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	_, err := s.exec(ctx, s.db,
		"INSERT INTO ledger_groups (id, name, trip_id, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, group.TripID, group.CreatedAt,
	)
	if s.dialect.uniqueViolation(err) {
		return apperr.Conflict(op, "group %s already exists", group.ID)
	}
	if err != nil {
		return transient(op, "insert group", err)
	}
	return nil
}

// GetGroup retrieves a group by its ID.
func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	const op = "sqlstore.GetGroup"
	g := &models.Group{}
	err := s.queryRow(ctx, s.db,
		"SELECT id, name, trip_id, created_at FROM ledger_groups WHERE id = ?",
		groupID,
	).Scan(&g.ID, &g.Name, &g.TripID, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(op, "group not found: %s", groupID)
	}
	if err != nil {
		return nil, transient(op, "get group", err)
	}
	return g, nil
}

// AddMember adds a member to an existing group.
func (s *Store) AddMember(ctx context.Context, member *models.Member) error {
	const op = "sqlstore.AddMember"
	if member.ID == "" {
		member.ID = uuid.New().String()
	}
	if member.CreatedAt == 0 {
		member.CreatedAt = time.Now().Unix()
	}
	if err := s.requireGroup(ctx, s.db, op, member.GroupID); err != nil {
		return err
	}

	_, err := s.exec(ctx, s.db,
		`INSERT INTO members (id, group_id, display_name, role, avatar_ref, is_virtual, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.ID, member.GroupID, member.DisplayName, string(member.Role), member.AvatarRef,
		member.Virtual, member.CreatedAt,
	)
	if s.dialect.uniqueViolation(err) {
		return apperr.Conflict(op, "member %s already in group", member.ID)
	}
	if err != nil {
		return transient(op, "insert member", err)
	}
	return nil
}

// RemoveMember deletes a member from a group.
func (s *Store) RemoveMember(ctx context.Context, groupID, memberID string) error {
	const op = "sqlstore.RemoveMember"
	res, err := s.exec(ctx, s.db, "DELETE FROM members WHERE group_id = ? AND id = ?", groupID, memberID)
	if err != nil {
		return transient(op, "delete member", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transient(op, "check deleted rows", err)
	}
	if n == 0 {
		return apperr.NotFound(op, "member not found: %s", memberID)
	}
	return nil
}

// MemberReferenced reports whether any expense, split or settlement refers to the member.
func (s *Store) MemberReferenced(ctx context.Context, groupID, memberID string) (bool, error) {
	var refs int64
	err := s.queryRow(ctx, s.db,
		`SELECT
		   (SELECT COUNT(*) FROM expenses WHERE group_id = ? AND paid_by = ?) +
		   (SELECT COUNT(*) FROM expense_splits sp JOIN expenses e ON e.id = sp.expense_id
		      WHERE e.group_id = ? AND sp.member_id = ?) +
		   (SELECT COUNT(*) FROM settlements WHERE group_id = ? AND (from_member = ? OR to_member = ?))`,
		groupID, memberID, groupID, memberID, groupID, memberID, memberID,
	).Scan(&refs)
	if err != nil {
		return false, transient("sqlstore.MemberReferenced", "count member references", err)
	}
	return refs > 0, nil
}

// ListMembers returns a group's members ordered by ID.
func (s *Store) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	const op = "sqlstore.ListMembers"
	rows, err := s.query(ctx, s.db,
		`SELECT id, group_id, display_name, role, avatar_ref, is_virtual, created_at
		 FROM members WHERE group_id = ? ORDER BY id`,
		groupID,
	)
	if err != nil {
		return nil, transient(op, "list members", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		var role string
		if err := rows.Scan(&m.ID, &m.GroupID, &m.DisplayName, &role, &m.AvatarRef, &m.Virtual, &m.CreatedAt); err != nil {
			return nil, transient(op, "scan member", err)
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, transient(op, "iterate members", err)
	}
	return members, nil
}
