package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/models"
)

const settlementColumns = "id, group_id, from_member, to_member, amount, status, created_by, created_at, completed_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanner, st *models.Settlement) error {
	var status string
	if err := row.Scan(&st.ID, &st.GroupID, &st.From, &st.To, &st.Amount, &status,
		&st.CreatedBy, &st.CreatedAt, &st.CompletedAt); err != nil {
		return err
	}
	st.Status = models.SettlementStatus(status)
	return nil
}

// ListSettlements returns a group's settlements oldest first.
func (s *Store) ListSettlements(ctx context.Context, groupID string) ([]models.Settlement, error) {
	const op = "sqlstore.ListSettlements"
	rows, err := s.query(ctx, s.db,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at, id",
		groupID,
	)
	if err != nil {
		return nil, transient(op, "list settlements", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var st models.Settlement
		if err := scanSettlement(rows, &st); err != nil {
			return nil, transient(op, "scan settlement", err)
		}
		settlements = append(settlements, st)
	}
	if err := rows.Err(); err != nil {
		return nil, transient(op, "iterate settlements", err)
	}
	return settlements, nil
}

// GetSettlement retrieves a settlement by ID.
func (s *Store) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	const op = "sqlstore.GetSettlement"
	st := &models.Settlement{}
	err := scanSettlement(s.queryRow(ctx, s.db,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?", settlementID), st)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(op, "settlement not found: %s", settlementID)
	}
	if err != nil {
		return nil, transient(op, "get settlement", err)
	}
	return st, nil
}

// CreateSettlement persists a new pending settlement. The partial unique
// index on pending rows turns a concurrent duplicate claim into a Conflict.
func (s *Store) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	const op = "sqlstore.CreateSettlement"
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}
	settlement.Status = models.StatusPending

	if err := s.requireGroup(ctx, s.db, op, settlement.GroupID); err != nil {
		return err
	}

	_, err := s.exec(ctx, s.db,
		"INSERT INTO settlements ("+settlementColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		settlement.ID, settlement.GroupID, settlement.From, settlement.To, settlement.Amount,
		string(settlement.Status), settlement.CreatedBy, settlement.CreatedAt, settlement.CompletedAt,
	)
	if s.dialect.uniqueViolation(err) {
		return apperr.Conflict(op, "a pending settlement from %q to %q already exists", settlement.From, settlement.To)
	}
	if err != nil {
		return transient(op, "insert settlement", err)
	}
	return nil
}

// UpdateSettlementStatus moves a pending settlement to a terminal status.
// The update only matches pending rows, so terminal rows are never rewritten.
func (s *Store) UpdateSettlementStatus(ctx context.Context, settlementID string, status models.SettlementStatus, completedAt int64) error {
	const op = "sqlstore.UpdateSettlementStatus"
	res, err := s.exec(ctx, s.db,
		"UPDATE settlements SET status = ?, completed_at = ? WHERE id = ? AND status = ?",
		string(status), completedAt, settlementID, string(models.StatusPending),
	)
	if err != nil {
		return transient(op, "update settlement", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return transient(op, "check updated rows", err)
	}
	if n == 1 {
		return nil
	}

	current, err := s.GetSettlement(ctx, settlementID)
	if err != nil {
		return err
	}
	return apperr.Conflict(op, "settlement %s is already %s", settlementID, current.Status)
}
