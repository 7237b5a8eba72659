// Package events fans group changes out to other server instances so they
// can invalidate their cached view of the group.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Kind names the mutation that changed a group.
type Kind string

const (
	KindGroupCreated        Kind = "group_created"
	KindMemberAdded         Kind = "member_added"
	KindMemberRemoved       Kind = "member_removed"
	KindExpenseRecorded     Kind = "expense_recorded"
	KindSettlementClaimed   Kind = "settlement_claimed"
	KindSettlementConfirmed Kind = "settlement_confirmed"
	KindSettlementCancelled Kind = "settlement_cancelled"
)

// GroupChanged is published after a mutation has been persisted.
type GroupChanged struct {
	GroupID string    `json:"group_id"`
	Kind    Kind      `json:"kind"`
	Origin  string    `json:"origin"` // instance id of the publisher
	At      time.Time `json:"at"`
}

// Encode converts the event to JSON bytes.
func (e GroupChanged) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses an event and rejects messages without a group.
func Decode(data []byte) (GroupChanged, error) {
	var e GroupChanged
	if err := json.Unmarshal(data, &e); err != nil {
		return GroupChanged{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if e.GroupID == "" {
		return GroupChanged{}, fmt.Errorf("event has no group id")
	}
	return e, nil
}

// Publisher delivers events to other instances.
type Publisher interface {
	Publish(ctx context.Context, event GroupChanged) error
	Close() error
}

// Handler processes one received event.
type Handler func(ctx context.Context, event GroupChanged) error

// Subscriber delivers events to a handler until ctx is cancelled.
type Subscriber interface {
	Run(ctx context.Context, handle Handler) error
	Close() error
}

// Nop discards every event. Used when EVENTS_BACKEND is none.
type Nop struct{}

func (Nop) Publish(context.Context, GroupChanged) error { return nil }
func (Nop) Close() error                                { return nil }

// SkipOrigin wraps handle so events published by origin itself are ignored.
// An instance has already invalidated its own cache before publishing.
func SkipOrigin(origin string, handle Handler) Handler {
	return func(ctx context.Context, event GroupChanged) error {
		if event.Origin == origin {
			return nil
		}
		return handle(ctx, event)
	}
}

// Invalidate returns a handler that calls invalidate for the event's group.
func Invalidate(invalidate func(groupID string)) Handler {
	return func(ctx context.Context, event GroupChanged) error {
		slog.DebugContext(ctx, "Invalidating group from event",
			"group_id", event.GroupID,
			"kind", event.Kind,
			"origin", event.Origin)
		invalidate(event.GroupID)
		return nil
	}
}

// backoff returns the delay before reconnect attempt n: 1s doubling, capped at 30s.
func backoff(attempt int) time.Duration {
	if attempt > 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
	}
	return d
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
