// Package middleware provides the HTTP middleware chain for the admission
// server: request-id, panic recovery, access logging, client identity
// derivation, and the admission check itself.
//
// The intended chain, outermost first:
//
//	RecoveryMiddleware
//	RequestIDMiddleware
//	IdentityMiddleware
//	LoggingMiddleware
//	AdmissionMiddleware
package middleware
