// Package admission contains the gate that decides whether a request may
// reach the metered downstream model call.
//
// Dimensions are checked in a fixed order, burst, request rate, usage
// budget, session cap, and the first rejection short-circuits the attempt.
// Rejections are values carrying the dimension, its limits, and retry
// guidance; nothing on the admission path returns an error for an
// over-limit client.
//
// The exemption list bypasses only the session dimension. It exists so
// trusted local callers can open parallel sessions for testing without
// ever disabling cost protection.
package admission
