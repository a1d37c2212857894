package admission

import (
	"time"

	"parkside-labs/gatehouse/pkg/admission/store"
)

// Dimension identifies which limit dimension produced a decision. The
// values are wire-visible: they appear in the 429 body and the
// X-RateLimit-Type header.
type Dimension string

const (
	// DimensionBurst is the short-window burst cap.
	DimensionBurst Dimension = "burst"

	// DimensionRequests is the main request-rate window.
	DimensionRequests Dimension = "requests"

	// DimensionTokens is the usage budget, in estimated units.
	DimensionTokens Dimension = "tokens"

	// DimensionSessions is the concurrent session cap.
	DimensionSessions Dimension = "sessions"
)

// Decision is the outcome of one admission attempt. A rejection is a
// value, not an error: the caller maps it to a 429 and skips the
// downstream expensive work.
type Decision struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Dimension is the dimension that rejected, on a rejection.
	Dimension Dimension

	// Limit and Remaining describe the rejecting dimension's counter.
	// Remaining reflects the untouched counter, not the rejected attempt.
	Limit     uint64
	Remaining uint64

	// ResetAt is when the rejecting window ends. Zero for session
	// rejections when no session window is configured.
	ResetAt time.Time

	// RetryAfter is the whole seconds a rejected caller should wait,
	// rounded up from ResetAt. Zero when there is no time-based reset;
	// Message then carries the advisory guidance instead.
	RetryAfter time.Duration

	// Message is the human-facing explanation for a rejection.
	Message string

	// EstimatedUnits is the budget reservation made for an admitted
	// request. The caller passes it back to ReportUsage once actual
	// usage is known.
	EstimatedUnits uint64

	// Quotas carries the post-admission standing of every dimension for
	// informational response headers. Nil on rejection.
	Quotas *QuotaSet
}

// QuotaSet is a read-only snapshot of a client's standing in each
// dimension, taken with non-mutating reads.
type QuotaSet struct {
	Requests store.Result
	Tokens   store.Result
	Sessions store.Result
}
