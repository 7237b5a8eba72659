// Package cache coordinates fetches of derived group state.
//
// A Coordinator owns one record per key. Reads are answered according to a
// freshness Policy, concurrent fetches for the same key are coalesced into a
// single load, and Invalidate forces the next read to fetch again.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mmynk/tripledger/internal/apperr"
	"github.com/mmynk/tripledger/internal/metrics"
)

// LoadFunc fetches the authoritative value for key.
type LoadFunc[T any] func(ctx context.Context, key string) (T, error)

// Snapshot is what a reader sees for one key.
type Snapshot[T any] struct {
	Value     T
	HasValue  bool
	FetchedAt time.Time
	Freshness Freshness
	// Refreshing is true while a fetch for the key is outstanding.
	Refreshing bool
	// MayBeOutdated is true when the last fetch attempt failed and Value
	// is the last good result.
	MayBeOutdated bool
}

// Observer receives cache events. *metrics.Metrics satisfies it.
type Observer interface {
	Lookup(outcome string)
	Fetched(d time.Duration, err error)
	Invalidated()
	BackgroundFailed()
}

type nopObserver struct{}

func (nopObserver) Lookup(string)                {}
func (nopObserver) Fetched(time.Duration, error) {}
func (nopObserver) Invalidated()                 {}
func (nopObserver) BackgroundFailed()            {}

// record is the per-key cache state.
type record[T any] struct {
	key         string
	value       T
	hasValue    bool
	fetchedAt   time.Time
	generation  uint64
	invalidated bool
	fetching    int
	waiters     int
	lastErr     error
}

type fetched[T any] struct {
	value T
	at    time.Time
}

// Coordinator is a staleness-aware, request-coalescing cache.
// The zero value is not usable; create one with New.
type Coordinator[T any] struct {
	load         LoadFunc[T]
	policy       Policy
	now          func() time.Time
	fetchTimeout time.Duration
	logger       *slog.Logger
	observer     Observer

	mu      sync.Mutex
	records map[string]*record[T]
	flights singleflight.Group
	bg      sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	policy       Policy
	now          func() time.Time
	fetchTimeout time.Duration
	logger       *slog.Logger
	observer     Observer
}

// WithPolicy overrides the freshness thresholds.
func WithPolicy(p Policy) Option { return func(o *options) { o.policy = p } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithFetchTimeout bounds each load. Loads run detached from the caller's
// context so one caller going away does not fail the others.
func WithFetchTimeout(d time.Duration) Option { return func(o *options) { o.fetchTimeout = d } }

// WithLogger sets the logger used for background refresh failures.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics reports cache events to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.observer = m
		}
	}
}

// New creates a Coordinator that loads values with load.
func New[T any](load LoadFunc[T], opts ...Option) *Coordinator[T] {
	o := options{
		policy:       DefaultPolicy(),
		now:          time.Now,
		fetchTimeout: 30 * time.Second,
		logger:       slog.Default(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Coordinator[T]{
		load:         load,
		policy:       o.policy,
		now:          o.now,
		fetchTimeout: o.fetchTimeout,
		logger:       o.logger,
		observer:     o.observer,
		records:      make(map[string]*record[T]),
	}
}

// Get returns the value for key according to the freshness policy.
//
// Fresh values return immediately. Stale values return immediately and start
// one background refresh. Expired, invalidated or missing values block until
// a fetch completes; if that fetch fails and an older value exists, it is
// returned with MayBeOutdated set alongside the error.
func (c *Coordinator[T]) Get(ctx context.Context, key string) (Snapshot[T], error) {
	c.mu.Lock()
	r := c.recordLocked(key)

	if r.hasValue && !r.invalidated {
		switch c.policy.Classify(c.now().Sub(r.fetchedAt)) {
		case Fresh:
			snap := c.snapshotLocked(r)
			c.mu.Unlock()
			c.observer.Lookup(metrics.OutcomeFresh)
			return snap, nil
		case Stale:
			c.refreshLocked(r)
			snap := c.snapshotLocked(r)
			snap.Refreshing = true
			c.mu.Unlock()
			c.observer.Lookup(metrics.OutcomeStale)
			return snap, nil
		}
	}

	if r.hasValue {
		c.observer.Lookup(metrics.OutcomeExpired)
	} else {
		c.observer.Lookup(metrics.OutcomeMiss)
	}
	return c.awaitLocked(ctx, r)
}

// Peek returns the cached snapshot without triggering any fetch.
func (c *Coordinator[T]) Peek(key string) Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[key]
	if !ok {
		return Snapshot[T]{Freshness: Expired}
	}
	return c.snapshotLocked(r)
}

// Invalidate marks key as expired. The next Get fetches again, and any
// fetch already in flight for key will not overwrite the record.
// It returns after the record is updated.
func (c *Coordinator[T]) Invalidate(key string) {
	c.mu.Lock()
	r := c.recordLocked(key)
	r.generation++
	r.invalidated = true
	c.mu.Unlock()
	c.observer.Invalidated()
}

// Wait blocks until all background refreshes have finished.
func (c *Coordinator[T]) Wait() {
	c.bg.Wait()
}

func (c *Coordinator[T]) recordLocked(key string) *record[T] {
	r, ok := c.records[key]
	if !ok {
		r = &record[T]{key: key}
		c.records[key] = r
	}
	return r
}

func (c *Coordinator[T]) snapshotLocked(r *record[T]) Snapshot[T] {
	fresh := Expired
	if r.hasValue && !r.invalidated {
		fresh = c.policy.Classify(c.now().Sub(r.fetchedAt))
	}
	return Snapshot[T]{
		Value:         r.value,
		HasValue:      r.hasValue,
		FetchedAt:     r.fetchedAt,
		Freshness:     fresh,
		Refreshing:    r.fetching > 0,
		MayBeOutdated: r.lastErr != nil,
	}
}

// flightLocked joins or starts the fetch for the record's current generation.
// It must be called with c.mu held so that joining and counting waiters are
// atomic with respect to the fetch finishing.
func (c *Coordinator[T]) flightLocked(r *record[T]) <-chan singleflight.Result {
	gen := r.generation
	key := r.key
	return c.flights.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		return c.fetch(key, gen)
	})
}

// awaitLocked waits for a foreground fetch. It releases c.mu.
func (c *Coordinator[T]) awaitLocked(ctx context.Context, r *record[T]) (Snapshot[T], error) {
	ch := c.flightLocked(r)
	r.waiters++
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		r.waiters--
		c.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		// The fetch keeps running for other waiters.
		return c.Peek(r.key), ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			prior := c.Peek(r.key)
			if prior.HasValue {
				prior.MayBeOutdated = true
			}
			return prior, res.Err
		}
		f := res.Val.(fetched[T])
		return Snapshot[T]{
			Value:     f.value,
			HasValue:  true,
			FetchedAt: f.at,
			Freshness: c.policy.Classify(c.now().Sub(f.at)),
		}, nil
	}
}

// refreshLocked starts a background refresh unless one is already running.
func (c *Coordinator[T]) refreshLocked(r *record[T]) {
	if r.fetching > 0 {
		return
	}
	ch := c.flightLocked(r)
	key := r.key

	c.bg.Add(1)
	go func() {
		defer c.bg.Done()
		res := <-ch
		if res.Err == nil {
			return
		}
		c.observer.BackgroundFailed()
		if apperr.Retryable(res.Err) {
			c.logger.Warn("Background refresh failed, serving last good value", "key", key, "error", res.Err)
			return
		}
		// Non-transient failures must reach a caller, so force the next
		// read into the foreground.
		c.logger.Error("Background refresh failed", "key", key, "error", res.Err)
		c.mu.Lock()
		if rec, ok := c.records[key]; ok {
			rec.invalidated = true
		}
		c.mu.Unlock()
	}()
}

// fetch runs one load for key at generation gen.
func (c *Coordinator[T]) fetch(key string, gen uint64) (fetched[T], error) {
	c.mu.Lock()
	r := c.recordLocked(key)
	r.fetching++
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	start := c.now()
	value, err := c.load(ctx, key)
	c.observer.Fetched(c.now().Sub(start), err)

	c.mu.Lock()
	defer c.mu.Unlock()
	r.fetching--

	if r.generation != gen {
		// Invalidated while loading: hand the result to the callers that
		// joined this fetch, but do not let it replace newer state.
		return fetched[T]{value: value, at: start}, err
	}
	if err != nil {
		r.lastErr = err
		return fetched[T]{}, err
	}
	r.value = value
	r.hasValue = true
	r.fetchedAt = start
	r.invalidated = false
	r.lastErr = nil
	return fetched[T]{value: value, at: start}, nil
}
