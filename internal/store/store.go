// Package store persists threat indicators keyed by (value, source feed).
package store

import (
	"context"
	"errors"

	"feedguard/internal/threat"
)

// ErrNotFound is returned when an indicator lookup misses.
var ErrNotFound = errors.New("indicator not found")

// IndicatorStore is the canonical indicator repository. Upsert preserves
// id and first_seen for an existing (indicator, source_feed) pair and
// reports whether the row is new.
type IndicatorStore interface {
	Upsert(ctx context.Context, c threat.Candidate) (*threat.Indicator, bool, error)
	Query(ctx context.Context, sourceFeed string, limit int) ([]threat.Indicator, error)
	Search(ctx context.Context, query string, t threat.Type) ([]threat.Indicator, error)
	CountBySource(ctx context.Context, feedID string) (int, error)
	PurgeBySource(ctx context.Context, feedID string) (int, error)
}
