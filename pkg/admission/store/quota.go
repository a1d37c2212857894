package store

// Quota reads are non-mutating: they report the current standing of a
// dimension without touching its counters, so they are safe to call for
// informational response headers after an admitting check. A key with no
// live window reports the full limit and a zero ResetAt.

// RequestQuota returns the client's standing in the main request window.
func (s *UsageStore) RequestQuota(key string) Result {
	lim := s.limits.Load()
	return s.readCount(s.requests, key, lim.RequestLimit)
}

// BurstQuota returns the client's standing in the burst window.
func (s *UsageStore) BurstQuota(key string) Result {
	lim := s.limits.Load()
	return s.readCount(s.bursts, key, lim.BurstLimit)
}

func (s *UsageStore) readCount(m *shardedMap[*countWindow], key string, limit uint64) Result {
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
		return Result{Allowed: true, Limit: limit, Remaining: limit}
	}

	remaining := uint64(0)
	if w.count < limit {
		remaining = limit - w.count
	}
	return Result{Allowed: remaining > 0, Limit: limit, Remaining: remaining, ResetAt: w.windowEnd}
}

// UsageQuota returns the client's standing in the budget window.
func (s *UsageStore) UsageQuota(key string) Result {
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
		return Result{Allowed: true, Limit: lim.UsageLimit, Remaining: lim.UsageLimit}
	}

	remaining := uint64(0)
	if w.consumed < lim.UsageLimit {
		remaining = lim.UsageLimit - w.consumed
	}
	return Result{Allowed: remaining > 0, Limit: lim.UsageLimit, Remaining: remaining, ResetAt: w.windowEnd}
}

// SessionQuota returns the client's standing against the session cap.
func (s *UsageStore) SessionQuota(key string) Result {
	lim := s.limits.Load()
	if lim.SessionLimit <= 0 {
		return Result{Allowed: true}
	}
	limit := uint64(lim.SessionLimit)

	now := s.now()
	sh := s.sessions.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.entries[key]
	if !ok || (!set.windowEnd.IsZero() && !now.Before(set.windowEnd)) {
		return Result{Allowed: true, Limit: limit, Remaining: limit}
	}

	remaining := uint64(0)
	if len(set.ids) < lim.SessionLimit {
		remaining = limit - uint64(len(set.ids))
	}
	return Result{Allowed: remaining > 0, Limit: limit, Remaining: remaining, ResetAt: set.windowEnd}
}
