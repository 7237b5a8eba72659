// Package optimistic keeps edits that have been issued but are not yet
// reflected in an authoritative group snapshot, and applies them on top of
// that snapshot for display.
//
// The authoritative state is never modified: View works on a clone and
// re-derives balances and debts with the same pipeline the loader uses.
package optimistic

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/tripledger/internal/groupstate"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/settlement"
)

// Command is one optimistic edit.
type Command interface {
	// Apply mutates the persisted rows of s. It must not touch derived fields.
	Apply(s *groupstate.State) error
	// Name is used in logs.
	Name() string
}

// RecordExpense adds an expense with its splits.
type RecordExpense struct {
	Expense models.Expense
}

func (c RecordExpense) Name() string { return "record_expense" }

func (c RecordExpense) Apply(s *groupstate.State) error {
	e := c.Expense
	e.Splits = append([]models.Split(nil), c.Expense.Splits...)
	s.Expenses = append(s.Expenses, e)
	return nil
}

// Claim adds a pending settlement.
type Claim struct {
	Settlement models.Settlement
}

func (c Claim) Name() string { return "claim_payment" }

func (c Claim) Apply(s *groupstate.State) error {
	st := c.Settlement
	if err := settlement.ValidateClaim(s.Outstanding, st.CreatedBy, st.From, st.To, st.Amount); err != nil {
		return err
	}
	st.Status = models.StatusPending
	s.Settlements = append(s.Settlements, st)
	return nil
}

// Resolve moves a pending settlement to Completed or Cancelled.
type Resolve struct {
	SettlementID string
	Target       models.SettlementStatus
	Actor        string
	At           int64
}

func (c Resolve) Name() string { return "resolve_" + string(c.Target) }

func (c Resolve) Apply(s *groupstate.State) error {
	for i, st := range s.Settlements {
		if st.ID != c.SettlementID {
			continue
		}
		next, err := settlement.Transition(st, c.Target, c.Actor, c.At)
		if err != nil {
			return err
		}
		s.Settlements[i] = next
		return nil
	}
	return errNotInSnapshot
}

var errNotInSnapshot = errors.New("settlement not in snapshot")

type entry struct {
	id          uint64
	cmd         Command
	committedAt time.Time // zero while the write is in flight
}

// Queue holds optimistic commands per group. The zero value is not usable; use NewQueue.
type Queue struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[string][]entry
	logger  *slog.Logger
}

// NewQueue creates an empty queue.
func NewQueue(logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{pending: make(map[string][]entry), logger: logger}
}

// Push enqueues cmd for groupID and returns a handle for Commit or Drop.
func (q *Queue) Push(groupID string, cmd Command) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.pending[groupID] = append(q.pending[groupID], entry{id: q.nextID, cmd: cmd})
	return q.nextID
}

// Commit records that the write behind id was persisted at.
func (q *Queue) Commit(groupID string, id uint64, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.pending[groupID] {
		if q.pending[groupID][i].id == id {
			q.pending[groupID][i].committedAt = at
			return
		}
	}
}

// Drop removes the command behind id, used when its write failed.
func (q *Queue) Drop(groupID string, id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(groupID, func(e entry) bool { return e.id == id })
}

// Reconcile discards commands whose commit happened before fetchedAt,
// since a snapshot fetched after the commit already contains them.
func (q *Queue) Reconcile(groupID string, fetchedAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(groupID, func(e entry) bool {
		return !e.committedAt.IsZero() && !fetchedAt.Before(e.committedAt)
	})
}

func (q *Queue) removeLocked(groupID string, match func(entry) bool) {
	kept := q.pending[groupID][:0]
	for _, e := range q.pending[groupID] {
		if !match(e) {
			kept = append(kept, e)
		}
	}
	if len(kept) == 0 {
		delete(q.pending, groupID)
		return
	}
	q.pending[groupID] = kept
}

// Len returns the number of queued commands for groupID.
func (q *Queue) Len(groupID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[groupID])
}

// View applies the queued commands for base's group to a copy of base.
// It returns nil when nothing is queued. A command that no longer applies
// to the newer snapshot is skipped and logged; it stays queued until its
// write resolves.
func (q *Queue) View(base *groupstate.State) *groupstate.State {
	q.mu.Lock()
	cmds := make([]Command, 0, len(q.pending[base.Group.ID]))
	for _, e := range q.pending[base.Group.ID] {
		cmds = append(cmds, e.cmd)
	}
	q.mu.Unlock()

	if len(cmds) == 0 {
		return nil
	}

	view := base
	for _, cmd := range cmds {
		next := view.Clone()
		if err := cmd.Apply(next); err != nil {
			q.logger.Debug("Skipping optimistic command", "command", cmd.Name(), "group_id", base.Group.ID, "error", err)
			continue
		}
		derived, err := next.Rederive()
		if err != nil {
			q.logger.Debug("Skipping optimistic command", "command", cmd.Name(), "group_id", base.Group.ID, "error", err)
			continue
		}
		view = derived
	}
	return view
}
