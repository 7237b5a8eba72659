// Package ledger is the entry point for reading and mutating a group's ledger.
//
// Reads go through a cache.Coordinator that owns one derived
// groupstate.State per group. Mutations are validated against freshly
// loaded state, written through storage, and invalidate the cached entry
// before they return, so a caller always reads its own writes.
package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/tripledger/internal/cache"
	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/events"
	"github.com/mmynk/tripledger/internal/groupstate"
	"github.com/mmynk/tripledger/internal/metrics"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/optimistic"
	"github.com/mmynk/tripledger/internal/storage"
)

// View is a group's ledger as served to a reader.
type View struct {
	// State is the authoritative snapshot.
	State *groupstate.State
	// Optimistic is State with this instance's unconfirmed edits applied,
	// or nil when there are none.
	Optimistic *groupstate.State

	FetchedAt     time.Time
	Freshness     cache.Freshness
	Refreshing    bool
	MayBeOutdated bool
}

// Engine implements the ledger operations.
type Engine struct {
	store      storage.Store
	cache      *cache.Coordinator[*groupstate.State]
	publisher  events.Publisher
	queue      *optimistic.Queue
	metrics    *metrics.Metrics
	logger     *slog.Logger
	instanceID string
	now        func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*config)

type config struct {
	cacheOpts  []cache.Option
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
	instanceID string
	now        func() time.Time
}

// WithCachePolicy sets the freshness thresholds.
func WithCachePolicy(p cache.Policy) Option {
	return func(c *config) { c.cacheOpts = append(c.cacheOpts, cache.WithPolicy(p)) }
}

// WithPublisher sets where change events are sent. Defaults to events.Nop.
func WithPublisher(p events.Publisher) Option {
	return func(c *config) { c.publisher = p }
}

// WithMetrics reports cache and settlement metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithInstanceID sets the origin stamped on published events.
func WithInstanceID(id string) Option {
	return func(c *config) { c.instanceID = id }
}

// WithClock replaces time.Now for the engine and its cache.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// New creates an Engine over store.
func New(store storage.Store, opts ...Option) *Engine {
	cfg := config{
		publisher: events.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		store:      store,
		publisher:  cfg.publisher,
		queue:      optimistic.NewQueue(cfg.logger),
		metrics:    cfg.metrics,
		logger:     cfg.logger,
		instanceID: cfg.instanceID,
		now:        cfg.now,
		locks:      make(map[string]*sync.Mutex),
	}

	cacheOpts := append([]cache.Option{
		cache.WithClock(cfg.now),
		cache.WithLogger(cfg.logger),
		cache.WithMetrics(cfg.metrics),
	}, cfg.cacheOpts...)
	e.cache = cache.New(e.load, cacheOpts...)
	return e
}

// load fetches a group's rows in parallel and derives its state.
func (e *Engine) load(ctx context.Context, groupID string) (*groupstate.State, error) {
	group, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var (
		members     []models.Member
		expenses    []models.Expense
		settlements []models.Settlement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = e.store.ListMembers(gctx, groupID)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = e.store.ListExpenses(gctx, groupID)
		return err
	})
	g.Go(func() error {
		var err error
		settlements, err = e.store.ListSettlements(gctx, groupID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return groupstate.Derive(*group, members, expenses, settlements)
}

// GetGroupState returns the cached view of a group. The returned states are
// copies and may be modified by the caller.
//
// When a foreground fetch fails but an older snapshot exists, both the
// view (marked MayBeOutdated) and the error are returned.
func (e *Engine) GetGroupState(ctx context.Context, groupID string) (*View, error) {
	snap, err := e.cache.Get(ctx, groupID)
	if !snap.HasValue {
		return nil, err
	}

	e.queue.Reconcile(groupID, snap.FetchedAt)
	pending := e.queue.View(snap.Value)
	if pending != nil {
		pending = pending.Clone()
	}
	view := &View{
		State:         snap.Value.Clone(),
		Optimistic:    pending,
		FetchedAt:     snap.FetchedAt,
		Freshness:     snap.Freshness,
		Refreshing:    snap.Refreshing,
		MayBeOutdated: snap.MayBeOutdated,
	}
	return view, err
}

// GetBalances returns every member's balance in the group.
func (e *Engine) GetBalances(ctx context.Context, groupID string) (map[string]calculator.Balance, error) {
	view, err := e.GetGroupState(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return view.State.Balances, nil
}

// GetOutstandingDebts returns the simplified debts with settlements applied.
// Fully settled pairs are omitted.
func (e *Engine) GetOutstandingDebts(ctx context.Context, groupID string) ([]calculator.DebtEdge, error) {
	view, err := e.GetGroupState(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return view.State.OutstandingDebts(), nil
}

// Invalidate drops the cached state for a group. Used by the event subscriber.
func (e *Engine) Invalidate(groupID string) {
	e.cache.Invalidate(groupID)
}

// Wait blocks until background cache refreshes have finished.
func (e *Engine) Wait() {
	e.cache.Wait()
}

// lockGroup serializes settlement mutations within one group.
func (e *Engine) lockGroup(groupID string) func() {
	e.locksMu.Lock()
	mu, ok := e.locks[groupID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[groupID] = mu
	}
	e.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

// changed invalidates the group and publishes the change. Publishing is
// best effort: failures are logged and never fail the mutation.
func (e *Engine) changed(ctx context.Context, groupID string, kind events.Kind) {
	e.cache.Invalidate(groupID)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	err := e.publisher.Publish(pubCtx, events.GroupChanged{
		GroupID: groupID,
		Kind:    kind,
		Origin:  e.instanceID,
		At:      e.now(),
	})
	if e.metrics != nil {
		e.metrics.Published(err)
	}
	if err != nil {
		e.logger.Warn("Failed to publish group change", "group_id", groupID, "kind", kind, "error", err)
	}
}
