package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"parkside-labs/gatehouse/pkg/admission"
	"parkside-labs/gatehouse/pkg/journal"
	"parkside-labs/gatehouse/pkg/telemetry/metrics"
)

// maxBodyBytes caps how much of the request body is read for estimation.
const maxBodyBytes = 1 << 20

// rejectionResponse is the 429 body returned to rejected callers.
type rejectionResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Limit     uint64 `json:"limit"`
	Remaining uint64 `json:"remaining"`
	ResetTime int64  `json:"resetTime,omitempty"`
}

// AdmissionMiddleware runs every request through the gate before the
// handler sees it.
//
// A rejection becomes a 429 with X-RateLimit-{Limit,Remaining,Reset,Type}
// headers, a Retry-After header when the rejecting window has a reset, and
// a JSON body naming the rejecting dimension. An admitted request gets
// informational quota headers and, after the handler returns, its budget
// reservation is reconciled against the actual usage the handler reported.
//
// collector and recorder are optional; nil disables metrics and journaling
// respectively.
func AdmissionMiddleware(gate *admission.Gate, collector *metrics.AdmissionMetrics, recorder journal.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := GetClientKey(ctx)
			sessionID := GetSessionID(ctx)

			content, restored, err := readContent(r)
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = restored

			decision := gate.Admit(key, sessionID, content)

			if collector != nil {
				dim := string(decision.Dimension)
				if dim == "" {
					dim = "none"
				}
				collector.RecordDecision(dim, decision.Allowed)
				if decision.Allowed {
					collector.RecordReservedUnits(decision.EstimatedUnits)
				}
			}
			if recorder != nil {
				entry := journal.NewEntry(key, sessionID,
					string(decision.Dimension), outcome(decision), decision.EstimatedUnits)
				if err := recorder.Record(ctx, entry); err != nil {
					slog.ErrorContext(ctx, "failed to journal decision",
						"request_id", GetRequestID(ctx),
						"error", err,
					)
				}
			}

			if !decision.Allowed {
				writeRejection(w, decision)
				return
			}

			setQuotaHeaders(w, decision.Quotas)

			report := &usageReport{}
			ctx = context.WithValue(ctx, usageReportKey, report)
			next.ServeHTTP(w, r.WithContext(ctx))

			if report.reported {
				gate.ReportUsage(key, decision.EstimatedUnits, report.actual)
			}
		})
	}
}

// readContent pulls the estimation content out of the request body and
// returns a replacement body so the handler can read it again. A JSON body
// with a "message" field estimates on the message text alone; anything
// else estimates on the raw body.
func readContent(r *http.Request) (string, io.ReadCloser, error) {
	if r.Body == nil {
		return "", http.NoBody, nil
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", nil, err
	}
	r.Body.Close()

	restored := io.NopCloser(bytes.NewReader(body))

	var probe struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Message != "" {
		return probe.Message, restored, nil
	}
	return string(body), restored, nil
}

func outcome(d *admission.Decision) string {
	if d.Allowed {
		return "admitted"
	}
	return "rejected"
}

func writeRejection(w http.ResponseWriter, d *admission.Decision) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	w.Header().Set("X-RateLimit-Type", string(d.Dimension))

	resp := rejectionResponse{
		Error:     "rate_limit_exceeded",
		Message:   d.Message,
		Type:      string(d.Dimension),
		Limit:     d.Limit,
		Remaining: d.Remaining,
	}

	if !d.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))
		resp.ResetTime = d.ResetAt.Unix()
	}
	if d.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(d.RetryAfter.Seconds())))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(resp)
}

// setQuotaHeaders decorates an admitted response with the caller's standing
// in each dimension.
func setQuotaHeaders(w http.ResponseWriter, q *admission.QuotaSet) {
	if q == nil {
		return
	}

	w.Header().Set("X-RateLimit-Requests-Limit", fmt.Sprintf("%d", q.Requests.Limit))
	w.Header().Set("X-RateLimit-Requests-Remaining", fmt.Sprintf("%d", q.Requests.Remaining))
	if !q.Requests.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Requests-Reset", fmt.Sprintf("%d", q.Requests.ResetAt.Unix()))
	}

	w.Header().Set("X-RateLimit-Tokens-Limit", fmt.Sprintf("%d", q.Tokens.Limit))
	w.Header().Set("X-RateLimit-Tokens-Remaining", fmt.Sprintf("%d", q.Tokens.Remaining))
	if !q.Tokens.ResetAt.IsZero() {
		w.Header().Set("X-RateLimit-Tokens-Reset", fmt.Sprintf("%d", q.Tokens.ResetAt.Unix()))
	}

	w.Header().Set("X-RateLimit-Sessions-Limit", fmt.Sprintf("%d", q.Sessions.Limit))
}
