// Package ledger implements the persistent record of previously announced
// papers that suppresses repeat posts across runs.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"papertrends/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS announced (
    paper_id     TEXT PRIMARY KEY,
    announced_at TIMESTAMP NOT NULL,
    partition    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_announced_partition ON announced(partition);
`

// OpenDB opens the sqlite database backing the ledger (and the translation
// cache, which shares the file). Single writer; sqlite does not support
// concurrent writes.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// SQLite is the durable ledger implementation. Entries are keyed by paper id
// and carry a YYYY-MM partition so an external retention job can prune old
// rows without touching this contract.
type SQLite struct {
	db *sql.DB
}

var _ ports.Ledger = (*SQLite)(nil)

// NewSQLite ensures the schema and returns the ledger.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Snapshot reads the full announced set once. The run filters against this
// snapshot only; entries written later in the same run are not re-checked.
func (l *SQLite) Snapshot(ctx context.Context) (map[string]bool, error) {
	query, args, err := sq.Select("paper_id").From("announced").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build snapshot query: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read ledger snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		snapshot[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger rows: %w", err)
	}

	return snapshot, nil
}

// Record marks a paper as announced. Idempotent: a crash between a channel
// success and this write means the paper is announced again next run, and the
// second write must not fail.
func (l *SQLite) Record(ctx context.Context, paperID string, announcedAt time.Time) error {
	query, args, err := sq.Insert("announced").
		Columns("paper_id", "announced_at", "partition").
		Values(paperID, announcedAt.UTC(), announcedAt.UTC().Format("2006-01")).
		Suffix("ON CONFLICT(paper_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build record query: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record announcement %s: %w", paperID, err)
	}
	return nil
}
