package admission

import (
	"log/slog"
	"sync/atomic"
	"time"

	"parkside-labs/gatehouse/pkg/admission/store"
	"parkside-labs/gatehouse/pkg/estimate"
)

// Gate composes the UsageStore checks into one client-facing admission
// decision. Dimensions are evaluated in a fixed order: burst, then
// request rate, then usage budget, then session cap. The first dimension
// that rejects short-circuits the attempt; later dimensions are neither
// checked nor counted.
//
// A Gate is an explicitly constructed, injected dependency. It holds no
// global state and is safe for concurrent use.
type Gate struct {
	store     *store.UsageStore
	estimator estimate.Estimator
	logger    *slog.Logger

	// exempt keys bypass the session dimension only; request-rate and
	// usage-budget checks still apply to them.
	exempt atomic.Pointer[map[string]struct{}]

	now func() time.Time
}

// NewGate creates a Gate over the given store and estimator. exemptKeys
// lists client keys allowed unlimited concurrent sessions.
func NewGate(st *store.UsageStore, est estimate.Estimator, exemptKeys []string, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		store:     st,
		estimator: est,
		logger:    logger.With("component", "admission.gate"),
		now:       time.Now,
	}
	g.SetExemptKeys(exemptKeys)
	return g
}

// SetExemptKeys atomically replaces the session-exemption list. Used by
// configuration hot reload.
func (g *Gate) SetExemptKeys(keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	g.exempt.Store(&set)
}

// Admit evaluates one request for the client identified by key. content is
// the request text used for budget estimation; sessionID names the logical
// conversation the request belongs to.
//
// On admission the decision carries the reserved unit estimate and a quota
// snapshot for every dimension. On rejection it carries the rejecting
// dimension, its counter standing, and retry guidance.
func (g *Gate) Admit(key, sessionID, content string) *Decision {
	if res := g.store.CheckBurst(key); !res.Allowed {
		return g.reject(DimensionBurst, res)
	}

	if res := g.store.CheckRequest(key); !res.Allowed {
		return g.reject(DimensionRequests, res)
	}

	units, err := g.estimator.EstimateUnits(content)
	if err != nil {
		// Fail closed: an unknown cost must not be admitted against the
		// budget.
		g.logger.Error("unit estimation failed, denying on the budget dimension",
			"client", key,
			"error", err,
		)
		return g.reject(DimensionTokens, g.store.UsageQuota(key))
	}

	if res := g.store.ReserveUsage(key, units); !res.Allowed {
		return g.reject(DimensionTokens, res)
	}

	if !g.isExempt(key) {
		if res := g.store.AdmitSession(key, sessionID); !res.Allowed {
			// No downstream work will run, so the reservation reconciles
			// to zero actual usage.
			g.store.ReconcileUsage(key, units, 0)
			return g.reject(DimensionSessions, res)
		}
	}

	quotas := g.Quotas(key)
	return &Decision{
		Allowed:        true,
		EstimatedUnits: units,
		Quotas:         &quotas,
	}
}

// ReportUsage reconciles a client's budget once actual downstream usage is
// known, replacing the estimate reserved at admission.
func (g *Gate) ReportUsage(key string, estimated, actual uint64) {
	g.store.ReconcileUsage(key, estimated, actual)
}

// ReleaseSession frees a session slot for the client. Safe to call for
// unknown keys or ids.
func (g *Gate) ReleaseSession(key, sessionID string) {
	g.store.ReleaseSession(key, sessionID)
}

// Quotas returns a non-mutating snapshot of the client's standing in every
// dimension.
func (g *Gate) Quotas(key string) QuotaSet {
	return QuotaSet{
		Requests: g.store.RequestQuota(key),
		Tokens:   g.store.UsageQuota(key),
		Sessions: g.store.SessionQuota(key),
	}
}

func (g *Gate) isExempt(key string) bool {
	set := g.exempt.Load()
	_, ok := (*set)[key]
	return ok
}

func (g *Gate) reject(dim Dimension, res store.Result) *Decision {
	d := &Decision{
		Allowed:   false,
		Dimension: dim,
		Limit:     res.Limit,
		Remaining: res.Remaining,
		ResetAt:   res.ResetAt,
		Message:   rejectionMessage(dim),
	}
	if !res.ResetAt.IsZero() {
		if wait := res.ResetAt.Sub(g.now()); wait > 0 {
			// Round up to whole seconds for the Retry-After header.
			d.RetryAfter = (wait + time.Second - 1).Truncate(time.Second)
		}
	}
	return d
}

func rejectionMessage(dim Dimension) string {
	switch dim {
	case DimensionBurst:
		return "too many requests in a short burst, please slow down"
	case DimensionRequests:
		return "request limit reached, please try again later"
	case DimensionTokens:
		return "usage budget exhausted for the current period"
	case DimensionSessions:
		return "active session limit reached, close a session first"
	default:
		return "request rejected"
	}
}
