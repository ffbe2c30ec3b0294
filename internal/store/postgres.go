package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"feedguard/internal/threat"
)

const schema = `
CREATE TABLE IF NOT EXISTS threat_indicators (
    id          TEXT PRIMARY KEY,
    indicator   TEXT NOT NULL,
    type        TEXT NOT NULL,
    confidence  INTEGER NOT NULL DEFAULT 50,
    tags        TEXT[] NOT NULL DEFAULT '{}',
    source_feed TEXT NOT NULL,
    first_seen  TIMESTAMPTZ NOT NULL,
    last_seen   TIMESTAMPTZ NOT NULL,
    metadata    JSONB NOT NULL DEFAULT '{}',
    UNIQUE (indicator, source_feed)
);
CREATE INDEX IF NOT EXISTS idx_threat_indicators_source ON threat_indicators (source_feed);
`

// PostgresStore is the IndicatorStore backed by PostgreSQL. Uniqueness of
// (indicator, source_feed) is enforced by the table constraint and upserts
// ride on INSERT ... ON CONFLICT.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the indicator table and indexes if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Close() error { return s.db.Close() }

func (s *PostgresStore) Upsert(ctx context.Context, c threat.Candidate) (*threat.Indicator, bool, error) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	meta := []byte("{}")
	if c.Metadata != nil {
		if b, err := json.Marshal(c.Metadata); err == nil {
			meta = b
		}
	}

	var (
		id        string
		firstSeen time.Time
	)
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO threat_indicators (id, indicator, type, confidence, tags, source_feed, first_seen, last_seen, metadata)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8)
        ON CONFLICT (indicator, source_feed) DO UPDATE
        SET type = EXCLUDED.type,
            confidence = EXCLUDED.confidence,
            tags = EXCLUDED.tags,
            metadata = EXCLUDED.metadata,
            last_seen = EXCLUDED.last_seen
        RETURNING id, first_seen
    `, uuid.NewString(), c.Indicator, string(c.Type), c.Confidence,
		pq.Array(c.Tags), c.SourceFeed, now, meta).Scan(&id, &firstSeen)
	if err != nil {
		return nil, false, fmt.Errorf("upsert indicator: %w", err)
	}

	ind := &threat.Indicator{
		ID:         id,
		Indicator:  c.Indicator,
		Type:       c.Type,
		Confidence: c.Confidence,
		Tags:       c.Tags,
		SourceFeed: c.SourceFeed,
		FirstSeen:  firstSeen,
		LastSeen:   now,
		Metadata:   c.Metadata,
	}
	// first_seen is written only on insert, so it equals the timestamp we
	// just sent exactly when the row is new.
	return ind, firstSeen.Equal(now), nil
}

func (s *PostgresStore) Query(ctx context.Context, sourceFeed string, limit int) ([]threat.Indicator, error) {
	query := `
        SELECT id, indicator, type, confidence, tags, source_feed, first_seen, last_seen, metadata
        FROM threat_indicators`
	args := []interface{}{}
	if sourceFeed != "" {
		query += ` WHERE source_feed = $1`
		args = append(args, sourceFeed)
	}
	query += ` ORDER BY first_seen`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIndicators(rows)
}

func (s *PostgresStore) Search(ctx context.Context, query string, t threat.Type) ([]threat.Indicator, error) {
	sqlQuery := `
        SELECT id, indicator, type, confidence, tags, source_feed, first_seen, last_seen, metadata
        FROM threat_indicators
        WHERE (indicator ILIKE '%' || $1 || '%'
               OR EXISTS (SELECT 1 FROM unnest(tags) tag WHERE tag ILIKE '%' || $1 || '%'))`
	args := []interface{}{query}
	if t != "" {
		sqlQuery += ` AND type = $2`
		args = append(args, string(t))
	}
	sqlQuery += ` ORDER BY first_seen`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIndicators(rows)
}

func (s *PostgresStore) CountBySource(ctx context.Context, feedID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM threat_indicators WHERE source_feed = $1`, feedID).Scan(&n)
	return n, err
}

func (s *PostgresStore) PurgeBySource(ctx context.Context, feedID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM threat_indicators WHERE source_feed = $1`, feedID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanIndicators(rows *sql.Rows) ([]threat.Indicator, error) {
	out := make([]threat.Indicator, 0)
	for rows.Next() {
		var (
			ind  threat.Indicator
			typ  string
			meta []byte
		)
		if err := rows.Scan(&ind.ID, &ind.Indicator, &typ, &ind.Confidence,
			pq.Array(&ind.Tags), &ind.SourceFeed, &ind.FirstSeen, &ind.LastSeen, &meta); err != nil {
			return nil, err
		}
		ind.Type = threat.Type(typ)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ind.Metadata); err != nil {
				ind.Metadata = nil
			}
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}
