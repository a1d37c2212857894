package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func testLimits() Limits {
	return Limits{
		RequestLimit:  10,
		RequestWindow: time.Hour,
		BurstLimit:    3,
		BurstWindow:   10 * time.Second,
		UsageLimit:    5000,
		UsageWindow:   24 * time.Hour,
		SessionLimit:  3,
	}
}

// newTestStore returns a store with a controllable clock.
func newTestStore(limits Limits) (*UsageStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	s := New(limits)
	s.now = clock.Now
	return s, clock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ============================================================================
// Request Window Tests
// ============================================================================

func TestCheckRequest_CountsDownThenRejects(t *testing.T) {
	s, _ := newTestStore(testLimits())

	for i := 0; i < 10; i++ {
		res := s.CheckRequest("client-a")
		if !res.Allowed {
			t.Fatalf("request %d: expected admit, got reject", i+1)
		}
		want := uint64(9 - i)
		if res.Remaining != want {
			t.Errorf("request %d: expected remaining %d, got %d", i+1, want, res.Remaining)
		}
	}

	res := s.CheckRequest("client-a")
	if res.Allowed {
		t.Fatal("11th request: expected reject")
	}
	if res.Remaining != 0 {
		t.Errorf("11th request: expected remaining 0, got %d", res.Remaining)
	}
	if res.Limit != 10 {
		t.Errorf("11th request: expected limit 10, got %d", res.Limit)
	}
}

func TestCheckRequest_RejectionKeepsResetAt(t *testing.T) {
	s, clock := newTestStore(testLimits())

	first := s.CheckRequest("client-a")
	for i := 0; i < 9; i++ {
		s.CheckRequest("client-a")
	}

	clock.Advance(10 * time.Minute)
	rejected := s.CheckRequest("client-a")
	if rejected.Allowed {
		t.Fatal("expected reject")
	}
	if !rejected.ResetAt.Equal(first.ResetAt) {
		t.Errorf("rejection must not move the window end: got %v, want %v",
			rejected.ResetAt, first.ResetAt)
	}
}

func TestCheckRequest_FreshWindowAfterExpiry(t *testing.T) {
	s, clock := newTestStore(testLimits())

	for i := 0; i < 10; i++ {
		s.CheckRequest("client-a")
	}
	if res := s.CheckRequest("client-a"); res.Allowed {
		t.Fatal("expected reject at limit")
	}

	clock.Advance(time.Hour + time.Second)

	res := s.CheckRequest("client-a")
	if !res.Allowed {
		t.Fatal("expected admit in fresh window")
	}
	if res.Remaining != 9 {
		t.Errorf("fresh window: expected remaining 9, got %d", res.Remaining)
	}
}

func TestCheckRequest_KeysAreIndependent(t *testing.T) {
	s, _ := newTestStore(testLimits())

	for i := 0; i < 10; i++ {
		s.CheckRequest("client-a")
	}
	if res := s.CheckRequest("client-a"); res.Allowed {
		t.Fatal("client-a should be rejected")
	}

	if res := s.CheckRequest("client-b"); !res.Allowed {
		t.Fatal("client-b must be unaffected by client-a's counters")
	}
}

func TestCheckBurst_IndependentOfRequestWindow(t *testing.T) {
	s, clock := newTestStore(testLimits())

	for i := 0; i < 3; i++ {
		if res := s.CheckBurst("client-a"); !res.Allowed {
			t.Fatalf("burst %d: expected admit", i+1)
		}
	}
	if res := s.CheckBurst("client-a"); res.Allowed {
		t.Fatal("4th burst check: expected reject")
	}

	// The main request window still has room.
	if res := s.CheckRequest("client-a"); !res.Allowed {
		t.Fatal("request window must not be consumed by burst checks")
	}

	// Burst window recovers quickly.
	clock.Advance(11 * time.Second)
	if res := s.CheckBurst("client-a"); !res.Allowed {
		t.Fatal("expected admit after burst window elapsed")
	}
}

func TestCheckRequest_ZeroLimitDisablesDimension(t *testing.T) {
	lim := testLimits()
	lim.RequestLimit = 0
	s, _ := newTestStore(lim)

	for i := 0; i < 100; i++ {
		if res := s.CheckRequest("client-a"); !res.Allowed {
			t.Fatal("zero limit must not enforce")
		}
	}
}

// Hard-limit invariant: concurrent callers sharing a key never admit more
// than the configured limit within one window.
func TestCheckRequest_ConcurrentNeverOverAdmits(t *testing.T) {
	lim := testLimits()
	lim.RequestLimit = 50
	s, _ := newTestStore(lim)

	const callers = 20
	const perCaller = 10

	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := int64(0)
			for j := 0; j < perCaller; j++ {
				if s.CheckRequest("shared").Allowed {
					local++
				}
			}
			mu.Lock()
			admitted += local
			mu.Unlock()
		}()
	}
	wg.Wait()

	if admitted != 50 {
		t.Errorf("expected exactly 50 admissions out of %d attempts, got %d",
			callers*perCaller, admitted)
	}
}

// ============================================================================
// Usage Budget Tests
// ============================================================================

func TestReserveUsage_RejectsWithoutConsuming(t *testing.T) {
	s, _ := newTestStore(testLimits())

	if res := s.ReserveUsage("client-a", 2000); !res.Allowed || res.Remaining != 3000 {
		t.Fatalf("first reserve: got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
	if res := s.ReserveUsage("client-a", 2000); !res.Allowed || res.Remaining != 1000 {
		t.Fatalf("second reserve: got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}

	// 4000 + 2000 > 5000: rejected, and consumed stays at 4000.
	rejected := s.ReserveUsage("client-a", 2000)
	if rejected.Allowed {
		t.Fatal("third reserve: expected reject")
	}
	if rejected.Remaining != 1000 {
		t.Errorf("rejection must report pre-attempt remaining: got %d, want 1000", rejected.Remaining)
	}

	// Idempotent on rejection: repeating the rejected call changes nothing.
	again := s.ReserveUsage("client-a", 2000)
	if again.Allowed || again.Remaining != 1000 {
		t.Errorf("repeated rejection mutated the budget: allowed=%v remaining=%d",
			again.Allowed, again.Remaining)
	}

	// A smaller reservation still fits.
	if res := s.ReserveUsage("client-a", 1000); !res.Allowed || res.Remaining != 0 {
		t.Errorf("exact-fit reserve: got allowed=%v remaining=%d", res.Allowed, res.Remaining)
	}
}

func TestReserveUsage_OversizedFirstRequest(t *testing.T) {
	s, _ := newTestStore(testLimits())

	res := s.ReserveUsage("client-a", 6000)
	if res.Allowed {
		t.Fatal("reservation above the whole budget must be rejected")
	}
	if res.Remaining != 5000 {
		t.Errorf("untouched budget should remain 5000, got %d", res.Remaining)
	}
}

func TestReserveUsage_FreshWindowAfterExpiry(t *testing.T) {
	s, clock := newTestStore(testLimits())

	s.ReserveUsage("client-a", 5000)
	if res := s.ReserveUsage("client-a", 1); res.Allowed {
		t.Fatal("expected exhausted budget")
	}

	clock.Advance(24*time.Hour + time.Minute)

	res := s.ReserveUsage("client-a", 1200)
	if !res.Allowed {
		t.Fatal("expected admit in fresh budget window")
	}
	if res.Remaining != 3800 {
		t.Errorf("fresh window: expected remaining 3800, got %d", res.Remaining)
	}
}

func TestReconcileUsage_AdjustsTowardActual(t *testing.T) {
	s, _ := newTestStore(testLimits())

	s.ReserveUsage("client-a", 2000)

	// Actual usage came in lower than the estimate.
	s.ReconcileUsage("client-a", 2000, 1500)
	if res := s.UsageQuota("client-a"); res.Remaining != 3500 {
		t.Errorf("after downward reconcile: expected remaining 3500, got %d", res.Remaining)
	}

	// Actual usage came in higher.
	s.ReconcileUsage("client-a", 0, 500)
	if res := s.UsageQuota("client-a"); res.Remaining != 3000 {
		t.Errorf("after upward reconcile: expected remaining 3000, got %d", res.Remaining)
	}
}

func TestReconcileUsage_ClampsAndSkipsRolledWindows(t *testing.T) {
	s, clock := newTestStore(testLimits())

	s.ReserveUsage("client-a", 100)

	// Over-correcting downward clamps at zero.
	s.ReconcileUsage("client-a", 5000, 0)
	if res := s.UsageQuota("client-a"); res.Remaining != 5000 {
		t.Errorf("expected clamp at zero consumed, remaining 5000, got %d", res.Remaining)
	}

	// A reconcile arriving after the window rolled is dropped.
	s.ReserveUsage("client-a", 100)
	clock.Advance(25 * time.Hour)
	s.ReconcileUsage("client-a", 100, 4000)
	if res := s.ReserveUsage("client-a", 1000); !res.Allowed || res.Remaining != 4000 {
		t.Errorf("stale reconcile leaked into the new window: allowed=%v remaining=%d",
			res.Allowed, res.Remaining)
	}
}

// ============================================================================
// Sweeper Interaction Tests
// ============================================================================

func TestSweep_RemovesOnlyEntriesPastGrace(t *testing.T) {
	s, clock := newTestStore(testLimits())

	s.CheckBurst("stale")
	clock.Advance(5 * time.Minute)
	s.CheckBurst("recent")

	// "stale" expired ~5m ago, "recent" expired moments ago.
	clock.Advance(11 * time.Second)

	if deleted := s.SweepBursts(time.Minute); deleted != 1 {
		t.Errorf("expected 1 eviction, got %d", deleted)
	}
	_, bursts, _, _ := s.Counts()
	if bursts != 1 {
		t.Errorf("expected 1 surviving burst entry, got %d", bursts)
	}
}

func TestSweep_IsInvisibleToChecks(t *testing.T) {
	s, clock := newTestStore(testLimits())

	for i := 0; i < 10; i++ {
		s.CheckRequest("client-a")
	}
	clock.Advance(2 * time.Hour)

	// Whether the stale entry is swept first or not, the next check sees
	// a fresh window either way.
	s.SweepRequests(30 * time.Minute)
	res := s.CheckRequest("client-a")
	if !res.Allowed || res.Remaining != 9 {
		t.Errorf("post-sweep check: got allowed=%v remaining=%d, want true/9",
			res.Allowed, res.Remaining)
	}
}

// ============================================================================
// Limit Reload Tests
// ============================================================================

func TestSetLimits_AppliesToSubsequentChecks(t *testing.T) {
	s, _ := newTestStore(testLimits())

	for i := 0; i < 10; i++ {
		s.CheckRequest("client-a")
	}
	if res := s.CheckRequest("client-a"); res.Allowed {
		t.Fatal("expected reject at old limit")
	}

	lim := testLimits()
	lim.RequestLimit = 20
	s.SetLimits(lim)

	res := s.CheckRequest("client-a")
	if !res.Allowed {
		t.Fatal("raised limit should admit within the existing window")
	}
	if res.Remaining != 9 {
		t.Errorf("expected remaining 9 under the raised limit, got %d", res.Remaining)
	}
}

func TestSetLimits_ShrunkBudgetBelowConsumed(t *testing.T) {
	s, _ := newTestStore(testLimits())

	if res := s.ReserveUsage("client-a", 2000); !res.Allowed {
		t.Fatal("reservation within the original budget should admit")
	}

	lim := testLimits()
	lim.UsageLimit = 1000
	s.SetLimits(lim)

	res := s.ReserveUsage("client-a", 1)
	if res.Allowed {
		t.Fatal("expected reject with consumption above the shrunk budget")
	}
	if res.Limit != 1000 {
		t.Errorf("limit = %d, want 1000", res.Limit)
	}
	if res.Remaining != 0 {
		t.Errorf("remaining = %d, want 0 (clamped, not wrapped)", res.Remaining)
	}

	quota := s.UsageQuota("client-a")
	if quota.Remaining != 0 {
		t.Errorf("quota remaining = %d, want 0 (clamped, not wrapped)", quota.Remaining)
	}
}

// ============================================================================
// Quota Read Tests
// ============================================================================

func TestQuotaReads_DisabledDimensions(t *testing.T) {
	s, _ := newTestStore(testLimits())

	// Accumulate live windows, then disable every dimension.
	s.CheckRequest("client-a")
	s.CheckBurst("client-a")
	s.ReserveUsage("client-a", 100)
	s.AdmitSession("client-a", "s1")

	s.SetLimits(Limits{})

	reads := map[string]Result{
		"requests": s.RequestQuota("client-a"),
		"burst":    s.BurstQuota("client-a"),
		"usage":    s.UsageQuota("client-a"),
		"sessions": s.SessionQuota("client-a"),
	}
	for dim, res := range reads {
		if !res.Allowed {
			t.Errorf("%s: disabled dimension reads as exhausted", dim)
		}
		if res.Limit != 0 || res.Remaining != 0 {
			t.Errorf("%s: disabled dimension reported limit=%d remaining=%d, want zeroes",
				dim, res.Limit, res.Remaining)
		}
	}
}

func TestQuotaReads_DoNotMutate(t *testing.T) {
	s, _ := newTestStore(testLimits())

	s.CheckRequest("client-a")
	for i := 0; i < 100; i++ {
		s.RequestQuota("client-a")
		s.BurstQuota("client-a")
		s.UsageQuota("client-a")
		s.SessionQuota("client-a")
	}

	res := s.RequestQuota("client-a")
	if res.Remaining != 9 {
		t.Errorf("quota reads mutated the counter: remaining %d, want 9", res.Remaining)
	}
}

func TestQuotaReads_UnknownKeyReportsFullLimit(t *testing.T) {
	s, _ := newTestStore(testLimits())

	res := s.UsageQuota("never-seen")
	if res.Remaining != 5000 || !res.ResetAt.IsZero() {
		t.Errorf("unknown key: got remaining=%d resetAt=%v, want 5000 and zero time",
			res.Remaining, res.ResetAt)
	}
}

func TestCounts(t *testing.T) {
	s, _ := newTestStore(testLimits())

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("client-%d", i)
		s.CheckRequest(key)
		s.ReserveUsage(key, 10)
	}
	reqs, bursts, usage, sessions := s.Counts()
	if reqs != 5 || bursts != 0 || usage != 5 || sessions != 0 {
		t.Errorf("got counts %d/%d/%d/%d, want 5/0/5/0", reqs, bursts, usage, sessions)
	}
}
