package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/models"
)

// LedgerService serves balances, debts, expenses and settlements.
type LedgerService struct {
	engine *ledger.Engine
}

// NewLedgerService creates a LedgerService backed by engine.
func NewLedgerService(engine *ledger.Engine) *LedgerService {
	return &LedgerService{engine: engine}
}

// readView loads a group for the calling member. Only real members of the
// group may read it. A non-nil view may come with a refresh error.
func readView(ctx context.Context, engine *ledger.Engine, groupID string) (*ledger.View, error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	view, err := engine.GetGroupState(ctx, groupID)
	if view == nil {
		return nil, err
	}
	if authErr := ledger.CanRead(view.State, actor); authErr != nil {
		return nil, authErr
	}
	return view, err
}

// GetGroupState returns the derived ledger of a group.
//
// If a refresh fails while an older snapshot exists, the snapshot is served
// with MayBeOutdated set and the failure in RefreshError.
func (s *LedgerService) GetGroupState(ctx context.Context, req *connect.Request[GetGroupStateRequest]) (*connect.Response[GetGroupStateResponse], error) {
	slog.Info("GetGroupState request received", "group_id", req.Msg.GroupID)

	view, err := readView(ctx, s.engine, req.Msg.GroupID)
	if view == nil {
		slog.Error("GetGroupState failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	resp := &GetGroupStateResponse{
		Group:         toGroup(view.State.Group),
		Ledger:        toLedger(view.State),
		FetchedAt:     view.FetchedAt.Unix(),
		Freshness:     view.Freshness.String(),
		Refreshing:    view.Refreshing,
		MayBeOutdated: view.MayBeOutdated,
	}
	if view.Optimistic != nil {
		optimistic := toLedger(view.Optimistic)
		resp.Optimistic = &optimistic
	}
	if err != nil {
		slog.Warn("GetGroupState serving outdated state", "group_id", req.Msg.GroupID, "error", err)
		resp.RefreshError = err.Error()
	}
	return connect.NewResponse(resp), nil
}

// GetBalances returns every member's balance, ordered by member ID.
func (s *LedgerService) GetBalances(ctx context.Context, req *connect.Request[GetBalancesRequest]) (*connect.Response[GetBalancesResponse], error) {
	slog.Info("GetBalances request received", "group_id", req.Msg.GroupID)

	view, err := readView(ctx, s.engine, req.Msg.GroupID)
	if err != nil {
		slog.Error("GetBalances failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetBalancesResponse{Balances: toBalances(view.State.Balances)}), nil
}

// GetOutstandingDebts returns the simplified debts still to be paid.
func (s *LedgerService) GetOutstandingDebts(ctx context.Context, req *connect.Request[GetOutstandingDebtsRequest]) (*connect.Response[GetOutstandingDebtsResponse], error) {
	slog.Info("GetOutstandingDebts request received", "group_id", req.Msg.GroupID)

	view, err := readView(ctx, s.engine, req.Msg.GroupID)
	if err != nil {
		slog.Error("GetOutstandingDebts failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetOutstandingDebtsResponse{Debts: toDebts(view.State.OutstandingDebts())}), nil
}

// RecordExpense records an expense paid by one member.
func (s *LedgerService) RecordExpense(ctx context.Context, req *connect.Request[RecordExpenseRequest]) (*connect.Response[RecordExpenseResponse], error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	slog.Info("RecordExpense request received",
		"group_id", req.Msg.GroupID,
		"paid_by", req.Msg.PaidBy,
		"amount", req.Msg.Amount,
	)

	amount := req.Msg.Amount
	if amount == 0 && req.Msg.AmountText != "" {
		parsed, err := models.ParseAmount(req.Msg.AmountText)
		if err != nil {
			return nil, toConnectError(apperr.Validation("service.RecordExpense", "%v", err))
		}
		amount = parsed
	}

	splits := make([]models.Split, len(req.Msg.Splits))
	for i, sp := range req.Msg.Splits {
		splits[i] = models.Split{MemberID: sp.MemberID, Amount: sp.Amount}
	}

	expense, err := s.engine.RecordExpense(ctx, actor, ledger.ExpenseInput{
		GroupID:         req.Msg.GroupID,
		Title:           req.Msg.Title,
		Description:     req.Msg.Description,
		Amount:          amount,
		PaidBy:          req.Msg.PaidBy,
		Category:        req.Msg.Category,
		Date:            req.Msg.Date,
		ItineraryItemID: req.Msg.ItineraryItemID,
		Splits:          splits,
		SplitEqually:    req.Msg.SplitEqually,
		Weights:         req.Msg.Weights,
	})
	if err != nil {
		slog.Error("RecordExpense failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Expense recorded", "expense_id", expense.ID, "group_id", expense.GroupID)
	return connect.NewResponse(&RecordExpenseResponse{Expense: toExpense(*expense)}), nil
}

// ClaimPayment records that the caller paid another member.
func (s *LedgerService) ClaimPayment(ctx context.Context, req *connect.Request[ClaimPaymentRequest]) (*connect.Response[SettlementResponse], error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	from := req.Msg.From
	if from == "" {
		from = actor
	}
	slog.Info("ClaimPayment request received",
		"group_id", req.Msg.GroupID,
		"from", from,
		"to", req.Msg.To,
		"amount", req.Msg.Amount,
	)

	st, err := s.engine.ClaimPayment(ctx, actor, req.Msg.GroupID, from, req.Msg.To, req.Msg.Amount)
	if err != nil {
		slog.Error("ClaimPayment failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Payment claimed", "settlement_id", st.ID, "group_id", st.GroupID)
	return connect.NewResponse(&SettlementResponse{Settlement: toSettlement(*st)}), nil
}

// ConfirmPayment marks a pending settlement completed. Only the payee may confirm.
func (s *LedgerService) ConfirmPayment(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return s.resolve(ctx, "ConfirmPayment", req.Msg.SettlementID, s.engine.ConfirmPayment)
}

// CancelPayment withdraws or rejects a pending settlement.
func (s *LedgerService) CancelPayment(ctx context.Context, req *connect.Request[SettlementRequest]) (*connect.Response[SettlementResponse], error) {
	return s.resolve(ctx, "CancelPayment", req.Msg.SettlementID, s.engine.CancelPayment)
}

type resolveFunc func(ctx context.Context, actor, settlementID string) (*models.Settlement, error)

func (s *LedgerService) resolve(ctx context.Context, name, settlementID string, fn resolveFunc) (*connect.Response[SettlementResponse], error) {
	actor := middleware.GetMemberID(ctx)
	if actor == "" {
		return nil, unauthenticated()
	}
	slog.Info(name+" request received", "settlement_id", settlementID, "member_id", actor)

	st, err := fn(ctx, actor, settlementID)
	if err != nil {
		slog.Error(name+" failed", "settlement_id", settlementID, "error", err)
		return nil, toConnectError(err)
	}

	slog.Info("Settlement updated", "settlement_id", st.ID, "status", st.Status)
	return connect.NewResponse(&SettlementResponse{Settlement: toSettlement(*st)}), nil
}
