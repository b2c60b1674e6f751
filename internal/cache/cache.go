// Package cache persists geocoding outcomes across process runs. Rows are
// keyed by (address_key, provider); a row with null coordinates is a
// negative entry meaning the provider was tried and found nothing.
package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Cache is the sqlite-backed result store.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database and configures WAL
// mode.
func Open(dsn string) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	c := &Cache{db: db}
	if err := c.migrate(); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return c, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	address_key     TEXT NOT NULL,
	provider        TEXT NOT NULL,
	lat             REAL,
	lon             REAL,
	matched_address TEXT,
	quality         TEXT,
	cached_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (address_key, provider)
);

CREATE INDEX IF NOT EXISTS idx_geocode_cache_key ON geocode_cache(address_key);
`

func (c *Cache) migrate() error {
	_, err := c.db.Exec(migration)
	return eris.Wrap(err, "cache: migrate")
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Key derives the cache key from the normalized address components.
func Key(street, city, state, zip string) string {
	joined := fmt.Sprintf("%s|%s|%s|%s",
		strings.ToLower(strings.TrimSpace(street)),
		strings.ToLower(strings.TrimSpace(city)),
		strings.ToLower(strings.TrimSpace(state)),
		strings.TrimSpace(zip),
	)
	h := sha256.Sum256([]byte(joined))
	return fmt.Sprintf("%x", h)
}

// Hit is a cached positive result.
type Hit struct {
	Lat            float64
	Lon            float64
	MatchedAddress string
	Provider       string
	Quality        string
}

// Get returns the best record for key: a positive hit from any provider
// if one exists, otherwise tried=true when any negative row exists.
func (c *Cache) Get(ctx context.Context, key string) (*Hit, bool, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT provider, lat, lon, matched_address, quality
		FROM geocode_cache
		WHERE address_key = ?
		ORDER BY (lat IS NULL), cached_at`, key)
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: get")
	}
	defer rows.Close() //nolint:errcheck

	tried := false
	for rows.Next() {
		var provider string
		var lat, lon sql.NullFloat64
		var matched, quality sql.NullString
		if err := rows.Scan(&provider, &lat, &lon, &matched, &quality); err != nil {
			return nil, false, eris.Wrap(err, "cache: scan")
		}
		tried = true
		if lat.Valid && lon.Valid {
			zap.L().Debug("cache hit", zap.String("key", keyPrefix(key)), zap.String("provider", provider))
			return &Hit{
				Lat:            lat.Float64,
				Lon:            lon.Float64,
				MatchedAddress: matched.String,
				Provider:       provider,
				Quality:        quality.String,
			}, true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, false, eris.Wrap(err, "cache: iterate")
	}
	return nil, tried, nil
}

// Put records a positive result. Inserts are first-write-wins: a
// duplicate key is a no-op, never an overwrite.
func (c *Cache) Put(ctx context.Context, key, provider string, lat, lon float64, matched, quality string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO geocode_cache (address_key, provider, lat, lon, matched_address, quality)
		VALUES (?, ?, ?, ?, ?, ?)`,
		key, provider, lat, lon, nullIfEmpty(matched), nullIfEmpty(quality),
	)
	return eris.Wrap(err, "cache: put")
}

// PutNegative records that provider was tried for key and found nothing.
func (c *Cache) PutNegative(ctx context.Context, key, provider string) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO geocode_cache (address_key, provider, lat, lon, matched_address, quality)
		VALUES (?, ?, NULL, NULL, NULL, NULL)`,
		key, provider,
	)
	return eris.Wrap(err, "cache: put negative")
}

// Lookup is the batch read: hits maps keys to their cached positive
// result, tried holds every key with any record at all, so callers can
// skip keys already attempted even when unmatched.
func (c *Cache) Lookup(ctx context.Context, keys []string) (map[string]Hit, map[string]bool, error) {
	hits := make(map[string]Hit)
	tried := make(map[string]bool)
	if len(keys) == 0 {
		return hits, tried, nil
	}

	const chunkSize = 500
	for start := 0; start < len(keys); start += chunkSize {
		end := start + chunkSize
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.lookupChunk(ctx, keys[start:end], hits, tried); err != nil {
			return nil, nil, err
		}
	}
	return hits, tried, nil
}

func (c *Cache) lookupChunk(ctx context.Context, keys []string, hits map[string]Hit, tried map[string]bool) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}

	rows, err := c.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT address_key, provider, lat, lon, matched_address, quality
		FROM geocode_cache
		WHERE address_key IN (%s)
		ORDER BY (lat IS NULL), cached_at`, placeholders), args...)
	if err != nil {
		return eris.Wrap(err, "cache: lookup")
	}
	defer rows.Close() //nolint:errcheck

	for rows.Next() {
		var key, provider string
		var lat, lon sql.NullFloat64
		var matched, quality sql.NullString
		if err := rows.Scan(&key, &provider, &lat, &lon, &matched, &quality); err != nil {
			return eris.Wrap(err, "cache: lookup scan")
		}
		tried[key] = true
		if _, seen := hits[key]; !seen && lat.Valid && lon.Valid {
			hits[key] = Hit{
				Lat:            lat.Float64,
				Lon:            lon.Float64,
				MatchedAddress: matched.String,
				Provider:       provider,
				Quality:        quality.String,
			}
		}
	}
	return eris.Wrap(rows.Err(), "cache: lookup iterate")
}

// Stats reports total and positive row counts.
func (c *Cache) Stats(ctx context.Context) (total, positive int, err error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(lat) FROM geocode_cache`)
	if err := row.Scan(&total, &positive); err != nil {
		return 0, 0, eris.Wrap(err, "cache: stats")
	}
	return total, positive, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func keyPrefix(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
