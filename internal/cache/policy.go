package cache

import "time"

// Freshness classifies a cached value by the age of its last successful fetch.
type Freshness int

const (
	// Fresh values are served without any I/O.
	Fresh Freshness = iota
	// Stale values are served immediately while one background refresh runs.
	Stale
	// Expired values (or missing ones) require the caller to await a fetch.
	Expired
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "expired"
	}
}

// Default thresholds.
const (
	DefaultFreshFor    = 2 * time.Minute
	DefaultExpireAfter = 5 * time.Minute
)

// Policy holds the freshness thresholds.
type Policy struct {
	// FreshFor is how long a value is served with no network activity.
	FreshFor time.Duration
	// ExpireAfter is the age past which callers must wait for a refetch.
	ExpireAfter time.Duration
}

// DefaultPolicy returns the 2 minute / 5 minute policy.
func DefaultPolicy() Policy {
	return Policy{FreshFor: DefaultFreshFor, ExpireAfter: DefaultExpireAfter}
}

// Classify returns the freshness for a value of the given age.
func (p Policy) Classify(age time.Duration) Freshness {
	switch {
	case age < p.FreshFor:
		return Fresh
	case age <= p.ExpireAfter:
		return Stale
	default:
		return Expired
	}
}
