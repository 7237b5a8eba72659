package settlement

import (
	"errors"
	"reflect"
	"testing"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
)

// balances: A paid 300 split three ways, B paid 150 split three ways.
var tripBalances = map[string]int64{"A": 150, "B": 0, "C": -150}

func tripEdges(t *testing.T) []calculator.DebtEdge {
	t.Helper()
	edges, err := calculator.Simplify(tripBalances)
	if err != nil {
		t.Fatalf("Simplify: %v", err)
	}
	return edges
}

func settlementRow(id, from, to string, amount int64, status models.SettlementStatus) models.Settlement {
	return models.Settlement{ID: id, From: from, To: to, Amount: amount, Status: status}
}

func TestOverlay(t *testing.T) {
	tests := []struct {
		name        string
		settlements []models.Settlement
		wantDebts   []calculator.DebtEdge
		wantPending string
	}{
		{
			name:      "nothing paid",
			wantDebts: []calculator.DebtEdge{{From: "C", To: "A", Amount: 150}},
		},
		{
			name:        "pending claim does not reduce outstanding",
			settlements: []models.Settlement{settlementRow("s1", "C", "A", 150, models.StatusPending)},
			wantDebts:   []calculator.DebtEdge{{From: "C", To: "A", Amount: 150}},
			wantPending: "s1",
		},
		{
			name:        "full payment confirmed",
			settlements: []models.Settlement{settlementRow("s1", "C", "A", 150, models.StatusCompleted)},
			wantDebts:   nil,
		},
		{
			name:        "partial payment confirmed",
			settlements: []models.Settlement{settlementRow("s1", "C", "A", 50, models.StatusCompleted)},
			wantDebts:   []calculator.DebtEdge{{From: "C", To: "A", Amount: 100}},
		},
		{
			name: "cancelled claims are ignored",
			settlements: []models.Settlement{
				settlementRow("s1", "C", "A", 150, models.StatusCancelled),
				settlementRow("s2", "C", "A", 40, models.StatusCompleted),
			},
			wantDebts: []calculator.DebtEdge{{From: "C", To: "A", Amount: 110}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Overlay(tripBalances, tripEdges(t), tt.settlements)
			if err != nil {
				t.Fatalf("Overlay() error: %v", err)
			}
			got := OutstandingDebts(rows)
			if !reflect.DeepEqual(got, tt.wantDebts) {
				t.Errorf("OutstandingDebts() = %+v, want %+v", got, tt.wantDebts)
			}
			row, ok := Find(rows, "C", "A")
			if !ok {
				t.Fatal("expected a row for C -> A")
			}
			gotPending := ""
			if row.Pending != nil {
				gotPending = row.Pending.ID
			}
			if gotPending != tt.wantPending {
				t.Errorf("pending = %q, want %q", gotPending, tt.wantPending)
			}
		})
	}
}

func TestOverlayRenetsWhenEdgesMoved(t *testing.T) {
	// C paid A 150 earlier. A later expense flipped positions so the
	// simplified edge is now A -> C 60 and C -> A no longer exists.
	balances := map[string]int64{"A": -210, "C": 210}
	edges, err := calculator.Simplify(balances)
	if err != nil {
		t.Fatalf("Simplify: %v", err)
	}
	settlements := []models.Settlement{settlementRow("s1", "C", "A", 150, models.StatusCompleted)}

	rows, err := Overlay(balances, edges, settlements)
	if err != nil {
		t.Fatalf("Overlay() error: %v", err)
	}
	got := OutstandingDebts(rows)
	want := []calculator.DebtEdge{{From: "A", To: "C", Amount: 360}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("OutstandingDebts() = %+v, want %+v", got, want)
	}
}

func TestOverlayKeepsOrphanPending(t *testing.T) {
	settlements := []models.Settlement{settlementRow("s9", "B", "A", 10, models.StatusPending)}
	rows, err := Overlay(tripBalances, tripEdges(t), settlements)
	if err != nil {
		t.Fatalf("Overlay() error: %v", err)
	}
	row, ok := Find(rows, "B", "A")
	if !ok || row.Pending == nil || row.Pending.ID != "s9" {
		t.Fatalf("expected orphan pending row for B -> A, got %+v", rows)
	}
	if row.Open() {
		t.Error("orphan pending row should not be open")
	}
}

func TestValidateClaim(t *testing.T) {
	open, err := Overlay(tripBalances, tripEdges(t), nil)
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}
	pending, err := Overlay(tripBalances, tripEdges(t), []models.Settlement{
		settlementRow("s1", "C", "A", 50, models.StatusPending),
	})
	if err != nil {
		t.Fatalf("Overlay: %v", err)
	}

	tests := []struct {
		name    string
		rows    []Outstanding
		actor   string
		from    string
		to      string
		amount  int64
		wantErr error
	}{
		{name: "full claim", rows: open, actor: "C", from: "C", to: "A", amount: 150},
		{name: "partial claim", rows: open, actor: "C", from: "C", to: "A", amount: 50},
		{name: "creditor cannot claim", rows: open, actor: "A", from: "C", to: "A", amount: 150, wantErr: apperr.ErrAuthorization},
		{name: "over claim", rows: open, actor: "C", from: "C", to: "A", amount: 151, wantErr: apperr.ErrConflict},
		{name: "no debt for pair", rows: open, actor: "B", from: "B", to: "A", amount: 1, wantErr: apperr.ErrConflict},
		{name: "zero amount", rows: open, actor: "C", from: "C", to: "A", amount: 0, wantErr: apperr.ErrValidation},
		{name: "self", rows: open, actor: "C", from: "C", to: "C", amount: 5, wantErr: apperr.ErrValidation},
		{name: "double claim", rows: pending, actor: "C", from: "C", to: "A", amount: 100, wantErr: apperr.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateClaim(tt.rows, tt.actor, tt.from, tt.to, tt.amount)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateClaim() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateClaim() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransition(t *testing.T) {
	pendingRow := settlementRow("s1", "C", "A", 150, models.StatusPending)

	tests := []struct {
		name    string
		from    models.Settlement
		target  models.SettlementStatus
		actor   string
		wantErr error
	}{
		{name: "creditor confirms", from: pendingRow, target: models.StatusCompleted, actor: "A"},
		{name: "debtor cannot confirm", from: pendingRow, target: models.StatusCompleted, actor: "C", wantErr: apperr.ErrAuthorization},
		{name: "debtor retracts", from: pendingRow, target: models.StatusCancelled, actor: "C"},
		{name: "creditor rejects", from: pendingRow, target: models.StatusCancelled, actor: "A"},
		{name: "bystander cannot cancel", from: pendingRow, target: models.StatusCancelled, actor: "B", wantErr: apperr.ErrAuthorization},
		{name: "back to pending", from: pendingRow, target: models.StatusPending, actor: "A", wantErr: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.target, tt.actor, 1700000000)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Transition() error = %v, want %v", err, tt.wantErr)
				}
				if got.Status != tt.from.Status {
					t.Errorf("status changed on failed transition: %s", got.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("Transition() unexpected error: %v", err)
			}
			if got.Status != tt.target || got.CompletedAt != 1700000000 {
				t.Errorf("Transition() = %+v", got)
			}
		})
	}
}

func TestTerminalSettlementsNeverTransition(t *testing.T) {
	for _, status := range []models.SettlementStatus{models.StatusCompleted, models.StatusCancelled} {
		s := settlementRow("s1", "C", "A", 150, status)
		for _, target := range []models.SettlementStatus{models.StatusCompleted, models.StatusCancelled} {
			for _, actor := range []string{"A", "C"} {
				if err := ValidateTransition(s, target, actor); !errors.Is(err, apperr.ErrConflict) {
					t.Errorf("%s -> %s by %s: error = %v, want conflict", status, target, actor, err)
				}
			}
		}
	}
}
