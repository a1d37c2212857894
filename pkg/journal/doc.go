// Package journal provides an append-only audit trail of admission
// decisions backed by SQLite.
//
// The journal is write-only from the limiter's point of view: entries are
// never read back into counters, so a restart always begins with empty
// windows regardless of what the journal holds. Retention is enforced by
// a cron-scheduled pruner that deletes entries older than the configured
// window.
package journal
