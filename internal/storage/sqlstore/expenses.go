package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tripledger/internal/models"
)

// ListExpenses returns a group's expenses oldest first with their splits nested.
func (s *Store) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	const op = "sqlstore.ListExpenses"
	rows, err := s.query(ctx, s.db,
		`SELECT id, group_id, title, description, amount, paid_by, category, expense_date, itinerary_item_id, created_at
		 FROM expenses WHERE group_id = ? ORDER BY created_at, id`,
		groupID,
	)
	if err != nil {
		return nil, transient(op, "list expenses", err)
	}

	var expenses []models.Expense
	index := make(map[string]int)
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Title, &e.Description, &e.Amount, &e.PaidBy,
			&e.Category, &e.Date, &e.ItineraryItemID, &e.CreatedAt); err != nil {
			rows.Close()
			return nil, transient(op, "scan expense", err)
		}
		index[e.ID] = len(expenses)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, transient(op, "iterate expenses", err)
	}
	rows.Close()

	if len(expenses) == 0 {
		return nil, nil
	}

	splitRows, err := s.query(ctx, s.db,
		`SELECT sp.expense_id, sp.member_id, sp.amount
		 FROM expense_splits sp JOIN expenses e ON e.id = sp.expense_id
		 WHERE e.group_id = ? ORDER BY sp.expense_id, sp.member_id`,
		groupID,
	)
	if err != nil {
		return nil, transient(op, "list splits", err)
	}
	defer splitRows.Close()

	for splitRows.Next() {
		var sp models.Split
		if err := splitRows.Scan(&sp.ExpenseID, &sp.MemberID, &sp.Amount); err != nil {
			return nil, transient(op, "scan split", err)
		}
		// Splits inserted after the expense query ran belong to expenses we did not list.
		if i, ok := index[sp.ExpenseID]; ok {
			expenses[i].Splits = append(expenses[i].Splits, sp)
		}
	}
	if err := splitRows.Err(); err != nil {
		return nil, transient(op, "iterate splits", err)
	}
	return expenses, nil
}

// CreateExpenseWithSplits persists the expense and its splits in one transaction.
func (s *Store) CreateExpenseWithSplits(ctx context.Context, expense *models.Expense) error {
	const op = "sqlstore.CreateExpenseWithSplits"
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transient(op, "begin transaction", err)
	}
	defer tx.Rollback()

	if err := s.requireGroup(ctx, tx, op, expense.GroupID); err != nil {
		return err
	}

	_, err = s.exec(ctx, tx,
		`INSERT INTO expenses (id, group_id, title, description, amount, paid_by, category, expense_date, itinerary_item_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Title, expense.Description, expense.Amount, expense.PaidBy,
		expense.Category, expense.Date, expense.ItineraryItemID, expense.CreatedAt,
	)
	if err != nil {
		return transient(op, "insert expense", err)
	}

	for i := range expense.Splits {
		sp := &expense.Splits[i]
		sp.ExpenseID = expense.ID
		_, err = s.exec(ctx, tx,
			"INSERT INTO expense_splits (expense_id, member_id, amount) VALUES (?, ?, ?)",
			sp.ExpenseID, sp.MemberID, sp.Amount,
		)
		if err != nil {
			return transient(op, "insert split", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return transient(op, "commit transaction", err)
	}
	return nil
}
