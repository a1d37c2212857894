// Package metrics exposes Prometheus instrumentation for the admission
// gate: decision counters by dimension and outcome, the reserved
// usage-unit counter, session and store-entry gauges, and sweeper
// eviction counters.
//
// All metrics live on a Collector-owned registry so multiple instances
// (primarily tests) never collide on metric names.
package metrics
