package ledger

import (
	"context"
	"strings"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/events"
	"github.com/mmynk/tripledger/internal/groupstate"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/optimistic"
	"github.com/mmynk/tripledger/internal/settlement"
)

// ExpenseInput describes an expense to record. Exactly one of Splits,
// SplitEqually or Weights determines how the amount is divided.
type ExpenseInput struct {
	GroupID         string
	Title           string
	Description     string
	Amount          int64
	PaidBy          string
	Category        string
	Date            int64
	ItineraryItemID string

	// Splits are explicit per-member amounts.
	Splits []models.Split
	// SplitEqually divides Amount evenly between these members.
	SplitEqually []string
	// Weights divides Amount in proportion to integer weights.
	Weights map[string]int64
}

func (in ExpenseInput) splits() ([]models.Split, error) {
	const op = "ledger.RecordExpense"
	modes := 0
	if len(in.Splits) > 0 {
		modes++
	}
	if len(in.SplitEqually) > 0 {
		modes++
	}
	if len(in.Weights) > 0 {
		modes++
	}
	if modes != 1 {
		return nil, apperr.Validation(op, "exactly one of splits, split_equally or weights is required")
	}

	switch {
	case len(in.SplitEqually) > 0:
		return calculator.EqualSplits(in.Amount, in.SplitEqually)
	case len(in.Weights) > 0:
		return calculator.WeightedSplits(in.Amount, in.Weights)
	default:
		return append([]models.Split(nil), in.Splits...), nil
	}
}

// requireActor checks that actor is a real member of the group.
func requireActor(op string, s *groupstate.State, actor string) (models.Member, error) {
	for _, m := range s.Members {
		if m.ID != actor {
			continue
		}
		if m.Virtual {
			return m, apperr.Authorization(op, "virtual member %q cannot act", actor)
		}
		return m, nil
	}
	return models.Member{}, apperr.Authorization(op, "%q is not a member of group %s", actor, s.Group.ID)
}

// CanRead reports whether actor may read the group's ledger.
// Only real members of the group may.
func CanRead(s *groupstate.State, actor string) error {
	_, err := requireActor("ledger.Read", s, actor)
	return err
}

// RecordExpense validates and persists an expense with its splits.
func (e *Engine) RecordExpense(ctx context.Context, actor string, in ExpenseInput) (*models.Expense, error) {
	const op = "ledger.RecordExpense"

	state, err := e.load(ctx, in.GroupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireActor(op, state, actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, apperr.Validation(op, "title is required")
	}

	splits, err := in.splits()
	if err != nil {
		return nil, err
	}
	expense := &models.Expense{
		GroupID:         in.GroupID,
		Title:           in.Title,
		Description:     in.Description,
		Amount:          in.Amount,
		PaidBy:          in.PaidBy,
		Category:        in.Category,
		Date:            in.Date,
		ItineraryItemID: in.ItineraryItemID,
		Splits:          splits,
	}
	if expense.Date == 0 {
		expense.Date = e.now().Unix()
	}
	if err := calculator.ValidateExpense(*expense); err != nil {
		return nil, err
	}
	if !state.HasMember(expense.PaidBy) {
		return nil, apperr.Validation(op, "payer %q is not a member of the group", expense.PaidBy)
	}
	for _, sp := range expense.Splits {
		if !state.HasMember(sp.MemberID) {
			return nil, apperr.Validation(op, "split member %q is not a member of the group", sp.MemberID)
		}
	}

	id := e.queue.Push(in.GroupID, optimistic.RecordExpense{Expense: *expense})
	if err := e.store.CreateExpenseWithSplits(ctx, expense); err != nil {
		e.queue.Drop(in.GroupID, id)
		return nil, err
	}
	e.queue.Commit(in.GroupID, id, e.now())

	e.logger.Info("Expense recorded", "group_id", in.GroupID, "expense_id", expense.ID, "amount", expense.Amount)
	e.changed(ctx, in.GroupID, events.KindExpenseRecorded)
	return expense, nil
}

// ClaimPayment records that from has paid amount to to. Only from may claim.
func (e *Engine) ClaimPayment(ctx context.Context, actor, groupID, from, to string, amount int64) (*models.Settlement, error) {
	const op = "ledger.ClaimPayment"

	unlock := e.lockGroup(groupID)
	defer unlock()

	state, err := e.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if _, err := requireActor(op, state, actor); err != nil {
		return nil, err
	}
	if !state.HasMember(to) {
		return nil, apperr.NotFound(op, "member not found: %s", to)
	}
	if err := settlement.ValidateClaim(state.Outstanding, actor, from, to, amount); err != nil {
		return nil, err
	}

	st := &models.Settlement{
		GroupID:   groupID,
		From:      from,
		To:        to,
		Amount:    amount,
		CreatedBy: actor,
		CreatedAt: e.now().Unix(),
	}
	id := e.queue.Push(groupID, optimistic.Claim{Settlement: *st})
	if err := e.store.CreateSettlement(ctx, st); err != nil {
		e.queue.Drop(groupID, id)
		return nil, err
	}
	e.queue.Commit(groupID, id, e.now())

	e.recordTransition(st.Status)
	e.logger.Info("Payment claimed", "group_id", groupID, "settlement_id", st.ID, "from", from, "to", to, "amount", amount)
	e.changed(ctx, groupID, events.KindSettlementClaimed)
	return st, nil
}

// ConfirmPayment completes a pending settlement. Only the creditor may confirm.
func (e *Engine) ConfirmPayment(ctx context.Context, actor, settlementID string) (*models.Settlement, error) {
	return e.resolve(ctx, "ledger.ConfirmPayment", actor, settlementID, models.StatusCompleted, events.KindSettlementConfirmed)
}

// CancelPayment cancels a pending settlement. Either party may cancel.
func (e *Engine) CancelPayment(ctx context.Context, actor, settlementID string) (*models.Settlement, error) {
	return e.resolve(ctx, "ledger.CancelPayment", actor, settlementID, models.StatusCancelled, events.KindSettlementCancelled)
}

func (e *Engine) resolve(ctx context.Context, op, actor, settlementID string, target models.SettlementStatus, kind events.Kind) (*models.Settlement, error) {
	current, err := e.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}

	unlock := e.lockGroup(current.GroupID)
	defer unlock()

	// Re-read under the lock; another request may have resolved it.
	current, err = e.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	next, err := settlement.Transition(*current, target, actor, now.Unix())
	if err != nil {
		return nil, err
	}

	id := e.queue.Push(current.GroupID, optimistic.Resolve{
		SettlementID: settlementID,
		Target:       target,
		Actor:        actor,
		At:           next.CompletedAt,
	})
	if err := e.store.UpdateSettlementStatus(ctx, settlementID, target, next.CompletedAt); err != nil {
		e.queue.Drop(current.GroupID, id)
		return nil, err
	}
	e.queue.Commit(current.GroupID, id, e.now())

	e.recordTransition(target)
	e.logger.Info("Settlement resolved", "op", op, "settlement_id", settlementID, "status", target, "actor", actor)
	e.changed(ctx, current.GroupID, kind)
	return &next, nil
}

func (e *Engine) recordTransition(status models.SettlementStatus) {
	if e.metrics != nil {
		e.metrics.SettlementTransition(string(status))
	}
}
