package translate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS translation_cache (
    paper_id    TEXT NOT NULL,
    target_lang TEXT NOT NULL,
    translation TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (paper_id, target_lang)
);
`

// Cache persists translations across runs so unchanged abstracts never hit
// the API twice. Shares the ledger's sqlite file.
type Cache struct {
	db *sql.DB
}

// NewCache ensures the schema and returns the cache.
func NewCache(db *sql.DB) (*Cache, error) {
	if _, err := db.Exec(cacheSchema); err != nil {
		return nil, fmt.Errorf("init translation cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached translation, or ok=false on a miss.
func (c *Cache) Get(ctx context.Context, paperID, targetLang string) (string, bool, error) {
	query, args, err := sq.Select("translation").
		From("translation_cache").
		Where(sq.Eq{"paper_id": paperID, "target_lang": targetLang}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build cache query: %w", err)
	}

	var translation string
	err = c.db.QueryRowContext(ctx, query, args...).Scan(&translation)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read translation cache: %w", err)
	}
	return translation, true, nil
}

// Put stores or refreshes a translation.
func (c *Cache) Put(ctx context.Context, paperID, targetLang, translation string, at time.Time) error {
	query, args, err := sq.Insert("translation_cache").
		Columns("paper_id", "target_lang", "translation", "created_at").
		Values(paperID, targetLang, translation, at.UTC()).
		Suffix("ON CONFLICT(paper_id, target_lang) DO UPDATE SET translation = excluded.translation, created_at = excluded.created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache upsert: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write translation cache: %w", err)
	}
	return nil
}

// Prune drops entries older than the expiry cutoff.
func (c *Cache) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := sq.Delete("translation_cache").
		Where(sq.Lt{"created_at": olderThan.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cache prune: %w", err)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune translation cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
