package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/auth"
	"github.com/mmynk/tripledger/internal/ledger"
	"github.com/mmynk/tripledger/internal/middleware"
	"github.com/mmynk/tripledger/internal/storage/sqlite"
)

type testServer struct {
	ledger *LedgerServiceClient
	groups *GroupServiceClient
	jwt    *auth.JWTManager
}

// setupTestServer serves both services over a temp SQLite database.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	engine := ledger.New(store)
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	interceptors := connect.WithInterceptors(middleware.RequireAuth(jwtManager))

	ledgerPath, ledgerHandler := NewLedgerServiceHandler(NewLedgerService(engine), interceptors)
	groupPath, groupHandler := NewGroupServiceHandler(NewGroupService(engine), interceptors)

	mux := http.NewServeMux()
	mux.Handle(ledgerPath, ledgerHandler)
	mux.Handle(groupPath, groupHandler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		engine.Wait()
		store.Close()
	})

	return &testServer{
		ledger: NewLedgerServiceClient(http.DefaultClient, server.URL),
		groups: NewGroupServiceClient(http.DefaultClient, server.URL),
		jwt:    jwtManager,
	}
}

// as wraps msg in a request authenticated as memberID.
func as[T any](t *testing.T, s *testServer, memberID string, msg *T) *connect.Request[T] {
	t.Helper()
	token, err := s.jwt.Generate(memberID, memberID)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	req := connect.NewRequest(msg)
	req.Header().Set("Authorization", "Bearer "+token)
	return req
}

func wantCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Fatalf("expected code %v, got %v (%v)", want, got, err)
	}
}

// setupTrip creates a group owned by alice with bob and a virtual member carl.
func setupTrip(t *testing.T, s *testServer) string {
	t.Helper()
	ctx := context.Background()

	created, err := s.groups.CreateGroup.CallUnary(ctx, as(t, s, "alice", &CreateGroupRequest{
		Name:        "Lisbon",
		TripID:      "trip-1",
		DisplayName: "Alice",
	}))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	groupID := created.Msg.Group.ID

	for _, m := range []AddMemberRequest{
		{GroupID: groupID, MemberID: "bob", DisplayName: "Bob"},
		{GroupID: groupID, MemberID: "carl", DisplayName: "Carl", Virtual: true},
	} {
		if _, err := s.groups.AddMember.CallUnary(ctx, as(t, s, "alice", &m)); err != nil {
			t.Fatalf("AddMember %s failed: %v", m.MemberID, err)
		}
	}
	return groupID
}

func TestCreateAndGetGroup(t *testing.T) {
	s := setupTestServer(t)
	groupID := setupTrip(t, s)

	resp, err := s.groups.GetGroup.CallUnary(context.Background(), as(t, s, "bob", &GetGroupRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if resp.Msg.Group.Name != "Lisbon" || resp.Msg.Group.TripID != "trip-1" {
		t.Errorf("unexpected group: %+v", resp.Msg.Group)
	}
	if len(resp.Msg.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(resp.Msg.Members))
	}

	roles := map[string]string{}
	for _, m := range resp.Msg.Members {
		roles[m.ID] = m.Role
		if m.ID == "carl" && !m.Virtual {
			t.Error("expected carl to be virtual")
		}
	}
	if roles["alice"] != "owner" || roles["bob"] != "member" {
		t.Errorf("unexpected roles: %v", roles)
	}
}

func TestSettleUpFlow(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	groupID := setupTrip(t, s)

	expense, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "alice", &RecordExpenseRequest{
		GroupID:      groupID,
		Title:        "Dinner",
		AmountText:   "90.00",
		PaidBy:       "alice",
		SplitEqually: []string{"alice", "bob", "carl"},
	}))
	if err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}
	if expense.Msg.Expense.Amount != 9000 || expense.Msg.Expense.AmountDisplay != "90.00" {
		t.Errorf("unexpected expense amount: %+v", expense.Msg.Expense)
	}
	if len(expense.Msg.Expense.Splits) != 3 {
		t.Errorf("expected 3 splits, got %d", len(expense.Msg.Expense.Splits))
	}

	balances, err := s.ledger.GetBalances.CallUnary(ctx, as(t, s, "bob", &GetBalancesRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetBalances failed: %v", err)
	}
	want := map[string]int64{"alice": 6000, "bob": -3000, "carl": -3000}
	if len(balances.Msg.Balances) != len(want) {
		t.Fatalf("expected %d balances, got %d", len(want), len(balances.Msg.Balances))
	}
	for _, b := range balances.Msg.Balances {
		if b.Balance != want[b.MemberID] {
			t.Errorf("balance of %s = %d, want %d", b.MemberID, b.Balance, want[b.MemberID])
		}
	}
	if balances.Msg.Balances[0].MemberID != "alice" || balances.Msg.Balances[0].BalanceDisplay != "60.00" {
		t.Errorf("expected balances ordered by member id, got %+v", balances.Msg.Balances[0])
	}

	claim, err := s.ledger.ClaimPayment.CallUnary(ctx, as(t, s, "bob", &ClaimPaymentRequest{
		GroupID: groupID,
		To:      "alice",
		Amount:  3000,
	}))
	if err != nil {
		t.Fatalf("ClaimPayment failed: %v", err)
	}
	if claim.Msg.Settlement.Status != "pending" || claim.Msg.Settlement.From != "bob" {
		t.Errorf("unexpected settlement: %+v", claim.Msg.Settlement)
	}
	settlementID := claim.Msg.Settlement.ID

	_, err = s.ledger.ConfirmPayment.CallUnary(ctx, as(t, s, "bob", &SettlementRequest{SettlementID: settlementID}))
	wantCode(t, err, connect.CodePermissionDenied)

	confirmed, err := s.ledger.ConfirmPayment.CallUnary(ctx, as(t, s, "alice", &SettlementRequest{SettlementID: settlementID}))
	if err != nil {
		t.Fatalf("ConfirmPayment failed: %v", err)
	}
	if confirmed.Msg.Settlement.Status != "completed" || confirmed.Msg.Settlement.CompletedAt == 0 {
		t.Errorf("unexpected settlement after confirm: %+v", confirmed.Msg.Settlement)
	}

	_, err = s.ledger.CancelPayment.CallUnary(ctx, as(t, s, "bob", &SettlementRequest{SettlementID: settlementID}))
	wantCode(t, err, connect.CodeFailedPrecondition)

	debts, err := s.ledger.GetOutstandingDebts.CallUnary(ctx, as(t, s, "alice", &GetOutstandingDebtsRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetOutstandingDebts failed: %v", err)
	}
	if len(debts.Msg.Debts) != 1 {
		t.Fatalf("expected 1 outstanding debt, got %+v", debts.Msg.Debts)
	}
	if d := debts.Msg.Debts[0]; d.From != "carl" || d.To != "alice" || d.Amount != 3000 {
		t.Errorf("unexpected debt: %+v", d)
	}

	state, err := s.ledger.GetGroupState.CallUnary(ctx, as(t, s, "alice", &GetGroupStateRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroupState failed: %v", err)
	}
	if len(state.Msg.Ledger.Expenses) != 1 || len(state.Msg.Ledger.Settlements) != 1 {
		t.Errorf("unexpected ledger: %+v", state.Msg.Ledger)
	}
	if state.Msg.MayBeOutdated || state.Msg.RefreshError != "" {
		t.Errorf("expected an up to date view, got %+v", state.Msg)
	}
	if state.Msg.Freshness != "fresh" {
		t.Errorf("expected fresh state, got %s", state.Msg.Freshness)
	}
}

func TestLedgerErrors(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	groupID := setupTrip(t, s)

	if _, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "alice", &RecordExpenseRequest{
		GroupID:      groupID,
		Title:        "Taxi",
		Amount:       3000,
		PaidBy:       "alice",
		SplitEqually: []string{"alice", "bob"},
	})); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "unauthenticated",
			call: func() error {
				_, err := s.ledger.GetBalances.CallUnary(ctx, connect.NewRequest(&GetBalancesRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodeUnauthenticated,
		},
		{
			name: "unknown group",
			call: func() error {
				_, err := s.ledger.GetGroupState.CallUnary(ctx, as(t, s, "alice", &GetGroupStateRequest{GroupID: "missing"}))
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "non-member reads balances",
			call: func() error {
				_, err := s.ledger.GetBalances.CallUnary(ctx, as(t, s, "mallory", &GetBalancesRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "non-member reads group state",
			call: func() error {
				_, err := s.ledger.GetGroupState.CallUnary(ctx, as(t, s, "mallory", &GetGroupStateRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "non-member reads debts",
			call: func() error {
				_, err := s.ledger.GetOutstandingDebts.CallUnary(ctx, as(t, s, "mallory", &GetOutstandingDebtsRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "non-member reads group",
			call: func() error {
				_, err := s.groups.GetGroup.CallUnary(ctx, as(t, s, "mallory", &GetGroupRequest{GroupID: groupID}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "amount too large",
			call: func() error {
				_, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "alice", &RecordExpenseRequest{
					GroupID:      groupID,
					Title:        "Yacht",
					AmountText:   "100000000000000000000",
					PaidBy:       "alice",
					SplitEqually: []string{"alice"},
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "overflowing weights",
			call: func() error {
				_, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "alice", &RecordExpenseRequest{
					GroupID: groupID,
					Title:   "Villa",
					Amount:  1 << 62,
					PaidBy:  "alice",
					Weights: map[string]int64{"alice": 1 << 62, "bob": 1 << 62},
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "amount with too many decimals",
			call: func() error {
				_, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "alice", &RecordExpenseRequest{
					GroupID:      groupID,
					Title:        "Snacks",
					AmountText:   "1.234",
					PaidBy:       "alice",
					SplitEqually: []string{"alice"},
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "non-member records expense",
			call: func() error {
				_, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "mallory", &RecordExpenseRequest{
					GroupID:      groupID,
					Title:        "Snacks",
					Amount:       100,
					PaidBy:       "alice",
					SplitEqually: []string{"alice"},
				}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "claim for someone else",
			call: func() error {
				_, err := s.ledger.ClaimPayment.CallUnary(ctx, as(t, s, "alice", &ClaimPaymentRequest{
					GroupID: groupID, From: "bob", To: "alice", Amount: 1500,
				}))
				return err
			},
			want: connect.CodePermissionDenied,
		},
		{
			name: "claim more than owed",
			call: func() error {
				_, err := s.ledger.ClaimPayment.CallUnary(ctx, as(t, s, "bob", &ClaimPaymentRequest{
					GroupID: groupID, To: "alice", Amount: 1501,
				}))
				return err
			},
			want: connect.CodeFailedPrecondition,
		},
		{
			name: "non-positive claim",
			call: func() error {
				_, err := s.ledger.ClaimPayment.CallUnary(ctx, as(t, s, "bob", &ClaimPaymentRequest{
					GroupID: groupID, To: "alice", Amount: 0,
				}))
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "unknown settlement",
			call: func() error {
				_, err := s.ledger.ConfirmPayment.CallUnary(ctx, as(t, s, "alice", &SettlementRequest{SettlementID: "missing"}))
				return err
			},
			want: connect.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wantCode(t, tt.call(), tt.want)
		})
	}
}

func TestMemberAdministration(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()
	groupID := setupTrip(t, s)

	_, err := s.groups.AddMember.CallUnary(ctx, as(t, s, "bob", &AddMemberRequest{GroupID: groupID, DisplayName: "Dave"}))
	wantCode(t, err, connect.CodePermissionDenied)

	added, err := s.groups.AddMember.CallUnary(ctx, as(t, s, "alice", &AddMemberRequest{GroupID: groupID, DisplayName: "Dave", Virtual: true}))
	if err != nil {
		t.Fatalf("AddMember failed: %v", err)
	}
	if added.Msg.Member.ID == "" {
		t.Fatal("expected generated member id")
	}

	if _, err := s.ledger.RecordExpense.CallUnary(ctx, as(t, s, "alice", &RecordExpenseRequest{
		GroupID:      groupID,
		Title:        "Museum",
		Amount:       2000,
		PaidBy:       "alice",
		SplitEqually: []string{"alice", "carl"},
	})); err != nil {
		t.Fatalf("RecordExpense failed: %v", err)
	}

	_, err = s.groups.RemoveMember.CallUnary(ctx, as(t, s, "alice", &RemoveMemberRequest{GroupID: groupID, MemberID: "carl"}))
	wantCode(t, err, connect.CodeFailedPrecondition)

	_, err = s.groups.RemoveMember.CallUnary(ctx, as(t, s, "alice", &RemoveMemberRequest{GroupID: groupID, MemberID: "alice"}))
	wantCode(t, err, connect.CodeFailedPrecondition)

	if _, err := s.groups.RemoveMember.CallUnary(ctx, as(t, s, "alice", &RemoveMemberRequest{GroupID: groupID, MemberID: added.Msg.Member.ID})); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if _, err := s.groups.RemoveMember.CallUnary(ctx, as(t, s, "bob", &RemoveMemberRequest{GroupID: groupID, MemberID: "bob"})); err != nil {
		t.Fatalf("self removal failed: %v", err)
	}

	resp, err := s.groups.GetGroup.CallUnary(ctx, as(t, s, "alice", &GetGroupRequest{GroupID: groupID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if len(resp.Msg.Members) != 2 {
		t.Errorf("expected 2 members left, got %+v", resp.Msg.Members)
	}
}

func TestCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"validation", apperr.Validation("op", "bad"), connect.CodeInvalidArgument},
		{"invariant", apperr.Invariant("op", "unbalanced"), connect.CodeInternal},
		{"conflict", apperr.Conflict("op", "pending"), connect.CodeFailedPrecondition},
		{"authorization", apperr.Authorization("op", "not yours"), connect.CodePermissionDenied},
		{"not found", apperr.NotFound("op", "missing"), connect.CodeNotFound},
		{"transient", apperr.Transient("op", errors.New("reset")), connect.CodeUnavailable},
		{"wrapped", fmt.Errorf("outer: %w", apperr.Conflict("op", "pending")), connect.CodeFailedPrecondition},
		{"canceled", context.Canceled, connect.CodeCanceled},
		{"deadline", context.DeadlineExceeded, connect.CodeDeadlineExceeded},
		{"unknown", errors.New("boom"), connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codeFor(tt.err); got != tt.want {
				t.Errorf("codeFor(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	original := connect.NewError(connect.CodeAborted, errors.New("aborted"))
	if got := toConnectError(original); got != original {
		t.Error("expected connect errors to pass through unchanged")
	}
}

func TestJSONCodecEmptyBody(t *testing.T) {
	var req GetBalancesRequest
	if err := (jsonCodec{}).Unmarshal(nil, &req); err != nil {
		t.Fatalf("Unmarshal(nil) failed: %v", err)
	}
	if err := (jsonCodec{}).Unmarshal([]byte("{"), &req); err == nil {
		t.Error("expected error for truncated JSON")
	}
}
