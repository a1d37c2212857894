package middleware

import (
	"context"
	"time"

	"parkside-labs/gatehouse/pkg/telemetry/logging"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// StartTimeKey stores the request start time for latency calculation.
	StartTimeKey contextKey = "start_time"

	// ClientKeyKey stores the derived client identity.
	ClientKeyKey contextKey = "client_key"

	// SessionIDKey stores the conversation session id.
	SessionIDKey contextKey = "session_id"

	// usageReportKey stores the mutable usage carrier shared between the
	// admission middleware and the downstream handler.
	usageReportKey contextKey = "usage_report"
)

// GetRequestID extracts the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	return logging.RequestID(ctx)
}

// GetClientKey extracts the derived client key from the context.
func GetClientKey(ctx context.Context) string {
	if key, ok := ctx.Value(ClientKeyKey).(string); ok {
		return key
	}
	return ""
}

// GetSessionID extracts the session id from the context.
func GetSessionID(ctx context.Context) string {
	if id, ok := ctx.Value(SessionIDKey).(string); ok {
		return id
	}
	return ""
}

// GetStartTime extracts the request start time from the context.
// Returns zero time if not found.
func GetStartTime(ctx context.Context) time.Time {
	if start, ok := ctx.Value(StartTimeKey).(time.Time); ok {
		return start
	}
	return time.Time{}
}

// usageReport is the carrier through which a handler reports the actual
// unit consumption of an admitted request back to the admission middleware.
type usageReport struct {
	actual   uint64
	reported bool
}

// ReportActualUsage records the actual units a handler consumed so the
// admission middleware can reconcile the budget reservation after the
// response completes. It is a no-op outside an admitted request.
func ReportActualUsage(ctx context.Context, units uint64) {
	if report, ok := ctx.Value(usageReportKey).(*usageReport); ok {
		report.actual = units
		report.reported = true
	}
}
