package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteConfig configures the SQLite journal.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// RetentionDays is how long entries are kept. Zero disables pruning.
	RetentionDays int

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteJournal is an append-only decision log backed by SQLite. Entries
// are never read back into the admission counters; the journal exists for
// after-the-fact auditing.
//
// The database is opened in WAL mode with a single writer connection,
// which is the concurrency model SQLite actually supports.
type SQLiteJournal struct {
	db        *sql.DB
	retention time.Duration
	closeOnce sync.Once

	insertStmt *sql.Stmt
	pruneStmt  *sql.Stmt
}

// OpenSQLite opens (creating if needed) a journal database at cfg.Path.
func OpenSQLite(cfg SQLiteConfig) (*SQLiteJournal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	j := &SQLiteJournal{
		db:        db,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
	}

	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	if err := j.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare journal statements: %w", err)
	}

	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS decisions (
		id TEXT PRIMARY KEY,
		recorded_at INTEGER NOT NULL,
		client_key TEXT NOT NULL,
		session_id TEXT,
		dimension TEXT,
		outcome TEXT NOT NULL,
		units INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_decisions_recorded_at ON decisions(recorded_at);
	CREATE INDEX IF NOT EXISTS idx_decisions_client_key ON decisions(client_key);
	`

	_, err := j.db.Exec(schema)
	return err
}

func (j *SQLiteJournal) prepareStatements() error {
	var err error

	j.insertStmt, err = j.db.Prepare(`
		INSERT INTO decisions (id, recorded_at, client_key, session_id, dimension, outcome, units)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	j.pruneStmt, err = j.db.Prepare(`
		DELETE FROM decisions WHERE recorded_at < ?
	`)
	return err
}

// Record writes one decision entry.
func (j *SQLiteJournal) Record(ctx context.Context, entry Entry) error {
	_, err := j.insertStmt.ExecContext(ctx,
		entry.ID,
		entry.Timestamp.UnixMilli(),
		entry.ClientKey,
		entry.SessionID,
		entry.Dimension,
		entry.Outcome,
		int64(entry.Units),
	)
	if err != nil {
		return fmt.Errorf("failed to record journal entry: %w", err)
	}
	return nil
}

// Prune deletes entries older than the retention window. A zero retention
// window makes Prune a no-op.
func (j *SQLiteJournal) Prune(ctx context.Context) (int64, error) {
	if j.retention == 0 {
		return 0, nil
	}

	cutoff := time.Now().UTC().Add(-j.retention).UnixMilli()
	res, err := j.pruneStmt.ExecContext(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned entries: %w", err)
	}
	return deleted, nil
}

// Count returns the number of entries, mainly for tests and diagnostics.
func (j *SQLiteJournal) Count(ctx context.Context) (int64, error) {
	var n int64
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count journal entries: %w", err)
	}
	return n, nil
}

// Close finalizes statements and closes the database. Safe to call more
// than once.
func (j *SQLiteJournal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		if j.insertStmt != nil {
			j.insertStmt.Close()
		}
		if j.pruneStmt != nil {
			j.pruneStmt.Close()
		}
		err = j.db.Close()
	})
	return err
}
