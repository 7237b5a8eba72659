package service

import (
	"net/http"

	"connectrpc.com/connect"
)

const (
	// LedgerServiceName is the fully-qualified name of the ledger service.
	LedgerServiceName = "tripledger.v1.LedgerService"
	// GroupServiceName is the fully-qualified name of the group service.
	GroupServiceName = "tripledger.v1.GroupService"
)

// Procedure paths.
const (
	LedgerServiceGetGroupStateProcedure       = "/" + LedgerServiceName + "/GetGroupState"
	LedgerServiceGetBalancesProcedure         = "/" + LedgerServiceName + "/GetBalances"
	LedgerServiceGetOutstandingDebtsProcedure = "/" + LedgerServiceName + "/GetOutstandingDebts"
	LedgerServiceRecordExpenseProcedure       = "/" + LedgerServiceName + "/RecordExpense"
	LedgerServiceClaimPaymentProcedure        = "/" + LedgerServiceName + "/ClaimPayment"
	LedgerServiceConfirmPaymentProcedure      = "/" + LedgerServiceName + "/ConfirmPayment"
	LedgerServiceCancelPaymentProcedure       = "/" + LedgerServiceName + "/CancelPayment"

	GroupServiceCreateGroupProcedure  = "/" + GroupServiceName + "/CreateGroup"
	GroupServiceGetGroupProcedure     = "/" + GroupServiceName + "/GetGroup"
	GroupServiceAddMemberProcedure    = "/" + GroupServiceName + "/AddMember"
	GroupServiceRemoveMemberProcedure = "/" + GroupServiceName + "/RemoveMember"
)

// Codec returns the option that installs the JSON codec. Clients built by
// this package already include it.
func Codec() connect.Option {
	return connect.WithCodec(jsonCodec{})
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{Codec()}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{Codec()}, opts...)
}

// NewLedgerServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewLedgerServiceHandler(svc *LedgerService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(LedgerServiceGetGroupStateProcedure, connect.NewUnaryHandler(LedgerServiceGetGroupStateProcedure, svc.GetGroupState, opts...))
	mux.Handle(LedgerServiceGetBalancesProcedure, connect.NewUnaryHandler(LedgerServiceGetBalancesProcedure, svc.GetBalances, opts...))
	mux.Handle(LedgerServiceGetOutstandingDebtsProcedure, connect.NewUnaryHandler(LedgerServiceGetOutstandingDebtsProcedure, svc.GetOutstandingDebts, opts...))
	mux.Handle(LedgerServiceRecordExpenseProcedure, connect.NewUnaryHandler(LedgerServiceRecordExpenseProcedure, svc.RecordExpense, opts...))
	mux.Handle(LedgerServiceClaimPaymentProcedure, connect.NewUnaryHandler(LedgerServiceClaimPaymentProcedure, svc.ClaimPayment, opts...))
	mux.Handle(LedgerServiceConfirmPaymentProcedure, connect.NewUnaryHandler(LedgerServiceConfirmPaymentProcedure, svc.ConfirmPayment, opts...))
	mux.Handle(LedgerServiceCancelPaymentProcedure, connect.NewUnaryHandler(LedgerServiceCancelPaymentProcedure, svc.CancelPayment, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// NewGroupServiceHandler builds an HTTP handler for svc and returns the path
// to mount it on.
func NewGroupServiceHandler(svc *GroupService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = handlerOptions(opts)
	mux := http.NewServeMux()
	mux.Handle(GroupServiceCreateGroupProcedure, connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts...))
	mux.Handle(GroupServiceGetGroupProcedure, connect.NewUnaryHandler(GroupServiceGetGroupProcedure, svc.GetGroup, opts...))
	mux.Handle(GroupServiceAddMemberProcedure, connect.NewUnaryHandler(GroupServiceAddMemberProcedure, svc.AddMember, opts...))
	mux.Handle(GroupServiceRemoveMemberProcedure, connect.NewUnaryHandler(GroupServiceRemoveMemberProcedure, svc.RemoveMember, opts...))
	return "/" + GroupServiceName + "/", mux
}

// LedgerServiceClient calls a remote LedgerService.
type LedgerServiceClient struct {
	GetGroupState       *connect.Client[GetGroupStateRequest, GetGroupStateResponse]
	GetBalances         *connect.Client[GetBalancesRequest, GetBalancesResponse]
	GetOutstandingDebts *connect.Client[GetOutstandingDebtsRequest, GetOutstandingDebtsResponse]
	RecordExpense       *connect.Client[RecordExpenseRequest, RecordExpenseResponse]
	ClaimPayment        *connect.Client[ClaimPaymentRequest, SettlementResponse]
	ConfirmPayment      *connect.Client[SettlementRequest, SettlementResponse]
	CancelPayment       *connect.Client[SettlementRequest, SettlementResponse]
}

// NewLedgerServiceClient creates a client for the service at baseURL.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *LedgerServiceClient {
	opts = clientOptions(opts)
	return &LedgerServiceClient{
		GetGroupState:       connect.NewClient[GetGroupStateRequest, GetGroupStateResponse](httpClient, baseURL+LedgerServiceGetGroupStateProcedure, opts...),
		GetBalances:         connect.NewClient[GetBalancesRequest, GetBalancesResponse](httpClient, baseURL+LedgerServiceGetBalancesProcedure, opts...),
		GetOutstandingDebts: connect.NewClient[GetOutstandingDebtsRequest, GetOutstandingDebtsResponse](httpClient, baseURL+LedgerServiceGetOutstandingDebtsProcedure, opts...),
		RecordExpense:       connect.NewClient[RecordExpenseRequest, RecordExpenseResponse](httpClient, baseURL+LedgerServiceRecordExpenseProcedure, opts...),
		ClaimPayment:        connect.NewClient[ClaimPaymentRequest, SettlementResponse](httpClient, baseURL+LedgerServiceClaimPaymentProcedure, opts...),
		ConfirmPayment:      connect.NewClient[SettlementRequest, SettlementResponse](httpClient, baseURL+LedgerServiceConfirmPaymentProcedure, opts...),
		CancelPayment:       connect.NewClient[SettlementRequest, SettlementResponse](httpClient, baseURL+LedgerServiceCancelPaymentProcedure, opts...),
	}
}

// GroupServiceClient calls a remote GroupService.
type GroupServiceClient struct {
	CreateGroup  *connect.Client[CreateGroupRequest, GroupResponse]
	GetGroup     *connect.Client[GetGroupRequest, GroupResponse]
	AddMember    *connect.Client[AddMemberRequest, AddMemberResponse]
	RemoveMember *connect.Client[RemoveMemberRequest, RemoveMemberResponse]
}

// NewGroupServiceClient creates a client for the service at baseURL.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	opts = clientOptions(opts)
	return &GroupServiceClient{
		CreateGroup:  connect.NewClient[CreateGroupRequest, GroupResponse](httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...),
		GetGroup:     connect.NewClient[GetGroupRequest, GroupResponse](httpClient, baseURL+GroupServiceGetGroupProcedure, opts...),
		AddMember:    connect.NewClient[AddMemberRequest, AddMemberResponse](httpClient, baseURL+GroupServiceAddMemberProcedure, opts...),
		RemoveMember: connect.NewClient[RemoveMemberRequest, RemoveMemberResponse](httpClient, baseURL+GroupServiceRemoveMemberProcedure, opts...),
	}
}
