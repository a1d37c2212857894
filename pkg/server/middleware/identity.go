package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	// SessionIDHeader carries the caller's conversation id. A request
	// without one is treated as a fresh single-request conversation.
	SessionIDHeader = "X-Session-ID"

	// fallbackClientKey is used when no address can be derived at all.
	fallbackClientKey = "127.0.0.1"
)

// IdentityMiddleware derives the client key and session id for the request
// and stores both in the context.
//
// The client key is the first non-empty source in order: the first entry of
// X-Forwarded-For, X-Real-IP, CF-Connecting-IP, then the connection's
// remote address. Proxy headers take precedence because the connection
// peer is usually the proxy itself.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, ClientKeyKey, clientKeyFrom(r))

		sessionID := strings.TrimSpace(r.Header.Get(SessionIDHeader))
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, SessionIDKey, sessionID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientKeyFrom walks the proxy-header fallback chain for the request.
func clientKeyFrom(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// The first entry is the originating client; later entries are
		// intermediate proxies.
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return real
	}

	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return fallbackClientKey
}
