// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/citegraph/pkg/types"
)

// CachedClient wraps a Client with a SQLite record cache so identifier
// lookups repeated within one session (stub hydration after seed, the
// master after selection) do not hit the upstream API twice. Query and
// citation listings pass through but populate the cache with the
// records they return.
//
// The cache holds raw source records only, never graph state; it is not
// a persistence layer for the graph.
type CachedClient struct {
	inner Client
	db    *sql.DB
	log   *zap.Logger
}

// NewCachedClient opens or creates the cache database at path. Use
// ":memory:" for a throwaway per-process cache.
func NewCachedClient(inner Client, path string, log *zap.Logger) (*CachedClient, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening fetch cache: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS records (
		namespace TEXT NOT NULL,
		value TEXT NOT NULL,
		record TEXT NOT NULL,
		PRIMARY KEY (namespace, value)
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating fetch cache schema: %w", err)
	}
	return &CachedClient{inner: inner, db: db, log: log}, nil
}

// Close releases the cache database.
func (c *CachedClient) Close() error { return c.db.Close() }

var _ Client = (*CachedClient)(nil)

// FetchByQuery passes through to the inner client and caches each
// returned record under all of its identifiers.
func (c *CachedClient) FetchByQuery(ctx context.Context, text string, limit int) ([]RawRecord, error) {
	records, err := c.inner.FetchByQuery(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	c.putAll(ctx, records)
	return records, nil
}

// FetchByIdentifiers serves from the cache when any supplied id has
// been seen this session, falling back to the inner client.
func (c *CachedClient) FetchByIdentifiers(ctx context.Context, ids []types.NamespacedID) (*RawRecord, error) {
	for _, id := range ids {
		if rec, ok := c.get(ctx, id); ok {
			return rec, nil
		}
	}

	rec, err := c.inner.FetchByIdentifiers(ctx, ids)
	if err != nil {
		return nil, err
	}
	c.putAll(ctx, []RawRecord{*rec})
	return rec, nil
}

// FetchCitations passes through and caches the citing records.
func (c *CachedClient) FetchCitations(ctx context.Context, id types.NamespacedID, limit int) ([]RawRecord, error) {
	records, err := c.inner.FetchCitations(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	c.putAll(ctx, records)
	return records, nil
}

func (c *CachedClient) get(ctx context.Context, id types.NamespacedID) (*RawRecord, bool) {
	var raw string
	err := c.db.QueryRowContext(ctx,
		`SELECT record FROM records WHERE namespace = ? AND value = ?`,
		string(id.Namespace), id.Value,
	).Scan(&raw)
	if err != nil {
		if err != sql.ErrNoRows {
			c.log.Warn("fetch cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var rec RawRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		c.log.Warn("fetch cache entry corrupt", zap.String("value", id.Value), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

// putAll stores each record under every identifier it carries. Cache
// write failures are logged and ignored; the fetch itself succeeded.
func (c *CachedClient) putAll(ctx context.Context, records []RawRecord) {
	for i := range records {
		rec := &records[i]
		raw, err := json.Marshal(rec)
		if err != nil {
			c.log.Warn("fetch cache encode failed", zap.Error(err))
			continue
		}
		for _, id := range rec.ExternalIDs() {
			_, err := c.db.ExecContext(ctx,
				`INSERT OR REPLACE INTO records (namespace, value, record) VALUES (?, ?, ?)`,
				string(id.Namespace), id.Value, string(raw),
			)
			if err != nil {
				c.log.Warn("fetch cache write failed", zap.Error(err))
			}
		}
	}
}
