// Package server provides the HTTP server fronting the admission gate.
//
// Routes:
//
//	POST   /v1/chat     admission-checked chat turn, delegated to the Responder
//	DELETE /v1/sessions release the caller's session slot (never rate limited)
//	GET    /healthz     liveness probe
//	GET    /metrics     Prometheus exposition, when metrics are enabled
package server
