// Gatehouse is an admission-control front door for a metered conversational
// endpoint.
//
// Every incoming chat request passes a layered check before any expensive
// downstream work runs: a short burst window, the main request-rate window,
// a usage budget in estimated units, and a concurrent session cap. Rejected
// requests get a structured 429 with retry guidance; admitted requests
// reserve budget that is reconciled once actual usage is known.
//
// Usage:
//
//	# Start with default configuration
//	gatehouse run
//
//	# Start with a custom configuration file
//	gatehouse run --config /etc/gatehouse/config.yaml
//
//	# Validate a configuration file without starting
//	gatehouse validate --config config.yaml
//
//	# Show version information
//	gatehouse version
package main

func main() {
	Execute()
}
