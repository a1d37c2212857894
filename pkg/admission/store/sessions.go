package store

import "time"

// sessionSet tracks the distinct session ids a client holds open.
// windowEnd is zero when no session window is configured, in which case
// the set only shrinks through explicit release.
type sessionSet struct {
	ids       map[string]struct{}
	windowEnd time.Time
}

// AdmitSession admits sessionID into the client's session set. Admission
// is idempotent: re-admitting an id that is already a member never changes
// the set. A new id is admitted only while the set is below the session
// cap.
func (s *UsageStore) AdmitSession(key, sessionID string) Result {
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
		set = &sessionSet{ids: make(map[string]struct{})}
		if lim.SessionWindow > 0 {
			set.windowEnd = now.Add(lim.SessionWindow)
		}
		sh.entries[key] = set
	}

	if _, member := set.ids[sessionID]; member {
		// The cap may have been reloaded below the open-session count;
		// remaining clamps at zero rather than wrapping.
		remaining := uint64(0)
		if len(set.ids) < lim.SessionLimit {
			remaining = limit - uint64(len(set.ids))
		}
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: remaining,
			ResetAt:   set.windowEnd,
		}
	}

	if len(set.ids) < lim.SessionLimit {
		set.ids[sessionID] = struct{}{}
		return Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - uint64(len(set.ids)),
			ResetAt:   set.windowEnd,
		}
	}

	return Result{Allowed: false, Limit: limit, Remaining: 0, ResetAt: set.windowEnd}
}

// ReleaseSession removes sessionID from the client's session set. It is a
// no-op when the key or id is unknown and never errors. An emptied,
// unwindowed set is dropped entirely so released clients cost no memory.
func (s *UsageStore) ReleaseSession(key, sessionID string) {
	sh := s.sessions.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	set, ok := sh.entries[key]
	if !ok {
		return
	}

	delete(set.ids, sessionID)
	if len(set.ids) == 0 && set.windowEnd.IsZero() {
		delete(sh.entries, key)
	}
}

// SessionCount returns the total number of open session ids across all
// clients. Used for telemetry.
func (s *UsageStore) SessionCount() int {
	total := 0
	for i := range s.sessions.shards {
		sh := &s.sessions.shards[i]
		sh.mu.Lock()
		for _, set := range sh.entries {
			total += len(set.ids)
		}
		sh.mu.Unlock()
	}
	return total
}

// SweepSessions deletes windowed session sets whose window ended more than
// grace ago, plus any empty sets. Sets without a window are never swept;
// their lifecycle is explicit release only.
func (s *UsageStore) SweepSessions(grace time.Duration) int {
	cutoff := s.now().Add(-grace)
	return s.sessions.sweep(func(set *sessionSet) bool {
		if len(set.ids) == 0 {
			return true
		}
		return !set.windowEnd.IsZero() && set.windowEnd.Before(cutoff)
	})
}
