package service

// Wire messages. Amounts are integer minor units; the *_display fields
// carry the same value formatted with two decimals.

type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TripID    string `json:"trip_id,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type Member struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Virtual     bool   `json:"virtual"`
}

type Split struct {
	MemberID string `json:"member_id"`
	Amount   int64  `json:"amount"`
}

type Expense struct {
	ID              string  `json:"id"`
	GroupID         string  `json:"group_id"`
	Title           string  `json:"title"`
	Description     string  `json:"description,omitempty"`
	Amount          int64   `json:"amount"`
	AmountDisplay   string  `json:"amount_display"`
	PaidBy          string  `json:"paid_by"`
	Category        string  `json:"category,omitempty"`
	Date            int64   `json:"date"`
	ItineraryItemID string  `json:"itinerary_item_id,omitempty"`
	CreatedAt       int64   `json:"created_at"`
	Splits          []Split `json:"splits"`
}

type Settlement struct {
	ID            string `json:"id"`
	GroupID       string `json:"group_id"`
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
	Status        string `json:"status"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     int64  `json:"created_at"`
	CompletedAt   int64  `json:"completed_at,omitempty"`
}

type Balance struct {
	MemberID       string `json:"member_id"`
	TotalPaid      int64  `json:"total_paid"`
	TotalOwed      int64  `json:"total_owed"`
	Balance        int64  `json:"balance"`
	BalanceDisplay string `json:"balance_display"`
}

type Debt struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        int64  `json:"amount"`
	AmountDisplay string `json:"amount_display"`
}

type OutstandingDebt struct {
	From                string `json:"from"`
	To                  string `json:"to"`
	Amount              int64  `json:"amount"`
	Settled             int64  `json:"settled"`
	Remaining           int64  `json:"remaining"`
	RemainingDisplay    string `json:"remaining_display"`
	PendingSettlementID string `json:"pending_settlement_id,omitempty"`
}

// Ledger is the derived view of a group.
type Ledger struct {
	Members     []Member          `json:"members"`
	Expenses    []Expense         `json:"expenses"`
	Settlements []Settlement      `json:"settlements"`
	Balances    []Balance         `json:"balances"`
	Outstanding []OutstandingDebt `json:"outstanding"`
}

type GetGroupStateRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupStateResponse struct {
	Group  Group  `json:"group"`
	Ledger Ledger `json:"ledger"`
	// Optimistic is Ledger with unconfirmed edits applied, when there are any.
	Optimistic    *Ledger `json:"optimistic,omitempty"`
	FetchedAt     int64   `json:"fetched_at"`
	Freshness     string  `json:"freshness"`
	Refreshing    bool    `json:"refreshing"`
	MayBeOutdated bool    `json:"may_be_outdated"`
	// RefreshError is set when the latest refresh failed and an older snapshot is served.
	RefreshError string `json:"refresh_error,omitempty"`
}

type GetBalancesRequest struct {
	GroupID string `json:"group_id"`
}

type GetBalancesResponse struct {
	Balances []Balance `json:"balances"`
}

type GetOutstandingDebtsRequest struct {
	GroupID string `json:"group_id"`
}

type GetOutstandingDebtsResponse struct {
	Debts []Debt `json:"debts"`
}

type RecordExpenseRequest struct {
	GroupID     string `json:"group_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	// Amount in minor units. AmountText ("12.34") is used when Amount is zero.
	Amount          int64            `json:"amount,omitempty"`
	AmountText      string           `json:"amount_text,omitempty"`
	PaidBy          string           `json:"paid_by"`
	Category        string           `json:"category,omitempty"`
	Date            int64            `json:"date,omitempty"`
	ItineraryItemID string           `json:"itinerary_item_id,omitempty"`
	Splits          []Split          `json:"splits,omitempty"`
	SplitEqually    []string         `json:"split_equally,omitempty"`
	Weights         map[string]int64 `json:"weights,omitempty"`
}

type RecordExpenseResponse struct {
	Expense Expense `json:"expense"`
}

type ClaimPaymentRequest struct {
	GroupID string `json:"group_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Amount  int64  `json:"amount"`
}

type SettlementRequest struct {
	SettlementID string `json:"settlement_id"`
}

type SettlementResponse struct {
	Settlement Settlement `json:"settlement"`
}

type CreateGroupRequest struct {
	Name   string `json:"name"`
	TripID string `json:"trip_id,omitempty"`
	// DisplayName is the creator's name in the group.
	DisplayName string `json:"display_name,omitempty"`
}

type GroupResponse struct {
	Group   Group    `json:"group"`
	Members []Member `json:"members"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type AddMemberRequest struct {
	GroupID     string `json:"group_id"`
	MemberID    string `json:"member_id,omitempty"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role,omitempty"`
	AvatarRef   string `json:"avatar_ref,omitempty"`
	Virtual     bool   `json:"virtual"`
}

type AddMemberResponse struct {
	Member Member `json:"member"`
}

type RemoveMemberRequest struct {
	GroupID  string `json:"group_id"`
	MemberID string `json:"member_id"`
}

type RemoveMemberResponse struct{}
