package store

import (
	"sync/atomic"
	"time"
)

// Limits holds the runtime thresholds for every dimension. The UsageStore
// reads its limits through an atomic pointer so a configuration reload can
// swap them without pausing the request path; counters accumulated under
// the previous limits are kept.
type Limits struct {
	// RequestLimit is the maximum requests per RequestWindow.
	RequestLimit  uint64
	RequestWindow time.Duration

	// BurstLimit is the maximum requests per BurstWindow. The burst check
	// composes with the request check; both must pass.
	BurstLimit  uint64
	BurstWindow time.Duration

	// UsageLimit is the maximum consumable units per UsageWindow.
	UsageLimit  uint64
	UsageWindow time.Duration

	// SessionLimit is the maximum concurrent sessions per client.
	// SessionWindow optionally resets a client's session set; zero means
	// sessions persist until explicitly released.
	SessionLimit  int
	SessionWindow time.Duration
}

// Result is the outcome of a single check-and-update. A rejection is a
// first-class value, never an error.
type Result struct {
	// Allowed indicates whether the check admitted the caller.
	Allowed bool

	// Limit is the configured limit for the checked dimension.
	Limit uint64

	// Remaining is how much of the limit is left after this check. On a
	// rejection it reflects the untouched counter, not the rejected
	// attempt.
	Remaining uint64

	// ResetAt is when the active window ends. Zero for session checks
	// when no session window is configured.
	ResetAt time.Time
}

// countWindow is a fixed window counting requests. It is reset lazily: a
// check that observes an elapsed window replaces it rather than relying on
// the sweeper.
type countWindow struct {
	count     uint64
	windowEnd time.Time
}

// usageWindow is a fixed window accumulating consumed units.
type usageWindow struct {
	consumed  uint64
	windowEnd time.Time
}

// UsageStore is the authoritative record of per-client admission counters.
// It owns all counter state; callers mutate it only through the operations
// below, each of which is atomic for a given client key.
//
// The store is scoped to a single process. When multiple instances run
// without a shared store, each enforces the limits independently and the
// effective global limit is multiplied by the instance count.
type UsageStore struct {
	limits atomic.Pointer[Limits]

	// now is the clock; replaced in tests for deterministic windows.
	now func() time.Time

	requests *shardedMap[*countWindow]
	bursts   *shardedMap[*countWindow]
	usage    *shardedMap[*usageWindow]
	sessions *shardedMap[*sessionSet]
}

// New creates a UsageStore enforcing the given limits. Entries for a client
// key are created lazily on first touch.
func New(limits Limits) *UsageStore {
	s := &UsageStore{
		now:      time.Now,
		requests: newShardedMap[*countWindow](),
		bursts:   newShardedMap[*countWindow](),
		usage:    newShardedMap[*usageWindow](),
		sessions: newShardedMap[*sessionSet](),
	}
	s.limits.Store(&limits)
	return s
}

// SetLimits atomically replaces the enforced limits. In-flight checks
// finish against whichever limits they loaded; subsequent checks see the
// new values.
func (s *UsageStore) SetLimits(limits Limits) {
	s.limits.Store(&limits)
}

// Limits returns the currently enforced limits.
func (s *UsageStore) Limits() Limits {
	return *s.limits.Load()
}

// CheckRequest performs the atomic check-and-increment for the main
// request window. A missing or elapsed window is replaced by a fresh one
// counting this request; otherwise the request is admitted only while the
// count is below the limit.
func (s *UsageStore) CheckRequest(key string) Result {
	lim := s.limits.Load()
	return s.checkCount(s.requests, key, lim.RequestLimit, lim.RequestWindow)
}

// CheckBurst is the same algorithm as CheckRequest over the independent,
// shorter burst window.
func (s *UsageStore) CheckBurst(key string) Result {
	lim := s.limits.Load()
	return s.checkCount(s.bursts, key, lim.BurstLimit, lim.BurstWindow)
}

func (s *UsageStore) checkCount(m *shardedMap[*countWindow], key string, limit uint64, window time.Duration) Result {
	// Zero means the dimension is not enforced.
	if limit == 0 {
		return Result{Allowed: true}
	}

	now := s.now()
	sh := m.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.entries[key]
	if !ok || !now.Before(w.windowEnd) {
		w = &countWindow{count: 1, windowEnd: now.Add(window)}
		sh.entries[key] = w
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: w.windowEnd}
	}

	if w.count < limit {
		w.count++
		return Result{Allowed: true, Limit: limit, Remaining: limit - w.count, ResetAt: w.windowEnd}
	}

	return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: w.windowEnd}
}

// ReserveUsage reserves units against the client's budget window. If the
// projected total would exceed the limit the reservation is rejected and
// the consumed counter is left untouched; the reported remaining budget is
// what was available before the attempt.
func (s *UsageStore) ReserveUsage(key string, units uint64) Result {
	lim := s.limits.Load()
	if lim.UsageLimit == 0 {
		return Result{Allowed: true}
	}

	now := s.now()
	sh := s.usage.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.entries[key]
	if !ok || !now.Before(w.windowEnd) {
		w = &usageWindow{consumed: 0, windowEnd: now.Add(lim.UsageWindow)}
		sh.entries[key] = w
	}

	projected := w.consumed + units
	if projected > lim.UsageLimit {
		// A limit reload may have shrunk the budget below what is already
		// consumed; remaining clamps at zero rather than wrapping.
		remaining := uint64(0)
		if w.consumed < lim.UsageLimit {
			remaining = lim.UsageLimit - w.consumed
		}
		return Result{
			Allowed:   false,
			Limit:     lim.UsageLimit,
			Remaining: remaining,
			ResetAt:   w.windowEnd,
		}
	}

	w.consumed = projected
	return Result{
		Allowed:   true,
		Limit:     lim.UsageLimit,
		Remaining: lim.UsageLimit - w.consumed,
		ResetAt:   w.windowEnd,
	}
}

// ReconcileUsage adjusts a client's consumed budget after the downstream
// work completes, replacing the reserved estimate with actual usage. The
// counter is clamped to [0, limit]: reconciliation corrects the estimate
// but never re-opens admission decisions already made.
//
// If the budget window has rolled over since the reservation the
// adjustment is dropped; the stale correction belongs to a window that no
// longer exists.
func (s *UsageStore) ReconcileUsage(key string, estimated, actual uint64) {
	lim := s.limits.Load()
	now := s.now()
	sh := s.usage.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	w, ok := sh.entries[key]
	if !ok || !now.Before(w.windowEnd) {
		return
	}

	switch {
	case actual > estimated:
		w.consumed += actual - estimated
		if w.consumed > lim.UsageLimit {
			w.consumed = lim.UsageLimit
		}
	case actual < estimated:
		delta := estimated - actual
		if delta > w.consumed {
			w.consumed = 0
		} else {
			w.consumed -= delta
		}
	}
}

// SweepRequests deletes request-window entries whose window ended more
// than grace ago. Deleting a stale entry is observably identical to the
// entry having expired, so the sweep composes safely with concurrent
// checks. Returns the number of entries deleted.
func (s *UsageStore) SweepRequests(grace time.Duration) int {
	cutoff := s.now().Add(-grace)
	return s.requests.sweep(func(w *countWindow) bool {
		return w.windowEnd.Before(cutoff)
	})
}

// SweepBursts deletes expired burst-window entries past the grace period.
func (s *UsageStore) SweepBursts(grace time.Duration) int {
	cutoff := s.now().Add(-grace)
	return s.bursts.sweep(func(w *countWindow) bool {
		return w.windowEnd.Before(cutoff)
	})
}

// SweepUsage deletes expired budget-window entries past the grace period.
func (s *UsageStore) SweepUsage(grace time.Duration) int {
	cutoff := s.now().Add(-grace)
	return s.usage.sweep(func(w *usageWindow) bool {
		return w.windowEnd.Before(cutoff)
	})
}

// Counts reports the number of live entries per dimension map, in the
// order: requests, bursts, usage, sessions. Used for memory telemetry.
func (s *UsageStore) Counts() (int, int, int, int) {
	return s.requests.len(), s.bursts.len(), s.usage.len(), s.sessions.len()
}
