package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one admission decision as written to the journal.
type Entry struct {
	// ID uniquely identifies the entry.
	ID string

	// Timestamp is when the decision was made.
	Timestamp time.Time

	// ClientKey identifies the caller the decision applied to.
	ClientKey string

	// SessionID is the conversation the request belonged to, if any.
	SessionID string

	// Dimension names the limit that produced the decision. Empty for
	// admitted requests that passed every dimension.
	Dimension string

	// Outcome is "admitted" or "rejected".
	Outcome string

	// Units is the usage-budget amount reserved for the request.
	Units uint64
}

// NewEntry builds an entry with a fresh ID and the current time.
func NewEntry(clientKey, sessionID, dimension, outcome string, units uint64) Entry {
	return Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		ClientKey: clientKey,
		SessionID: sessionID,
		Dimension: dimension,
		Outcome:   outcome,
		Units:     units,
	}
}

// Recorder persists journal entries.
type Recorder interface {
	// Record writes one entry.
	Record(ctx context.Context, entry Entry) error

	// Prune deletes entries older than the retention window and returns
	// the number deleted.
	Prune(ctx context.Context) (int64, error)

	// Close releases the underlying storage.
	Close() error
}
