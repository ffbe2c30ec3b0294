package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/willf/bloom"

	"feedguard/internal/threat"
)

// MemoryStore is the in-process IndicatorStore. A bloom filter over
// (value, feed) keys front-runs the map lookup on upsert: a negative test
// means the indicator is definitely new. The filter only ever grows, so
// stale entries after a purge cost one extra map lookup and nothing else.
type MemoryStore struct {
	mu         sync.RWMutex
	indicators map[string]*threat.Indicator
	order      []string
	filter     *bloom.BloomFilter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		indicators: make(map[string]*threat.Indicator),
		filter:     bloom.New(1_000_000, 5),
	}
}

func indicatorKey(value, feedID string) string {
	return value + "\x00" + feedID
}

func (s *MemoryStore) Upsert(_ context.Context, c threat.Candidate) (*threat.Indicator, bool, error) {
	key := indicatorKey(c.Indicator, c.SourceFeed)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *threat.Indicator
	if s.filter.Test([]byte(key)) {
		existing = s.indicators[key]
	}

	if existing != nil {
		existing.Type = c.Type
		existing.Confidence = c.Confidence
		existing.Tags = append([]string(nil), c.Tags...)
		existing.Metadata = c.Metadata
		existing.LastSeen = now
		cp := *existing
		return &cp, false, nil
	}

	ind := &threat.Indicator{
		ID:         uuid.NewString(),
		Indicator:  c.Indicator,
		Type:       c.Type,
		Confidence: c.Confidence,
		Tags:       append([]string(nil), c.Tags...),
		SourceFeed: c.SourceFeed,
		FirstSeen:  now,
		LastSeen:   now,
		Metadata:   c.Metadata,
	}
	s.indicators[key] = ind
	s.order = append(s.order, key)
	s.filter.Add([]byte(key))
	cp := *ind
	return &cp, true, nil
}

func (s *MemoryStore) Query(_ context.Context, sourceFeed string, limit int) ([]threat.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]threat.Indicator, 0)
	for _, key := range s.order {
		ind, ok := s.indicators[key]
		if !ok {
			continue
		}
		if sourceFeed != "" && ind.SourceFeed != sourceFeed {
			continue
		}
		out = append(out, *ind)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Search matches the query against the indicator value or any tag,
// case-insensitive, optionally restricted to one type.
func (s *MemoryStore) Search(_ context.Context, query string, t threat.Type) ([]threat.Indicator, error) {
	q := strings.ToLower(query)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]threat.Indicator, 0)
	for _, key := range s.order {
		ind, ok := s.indicators[key]
		if !ok {
			continue
		}
		if t != "" && ind.Type != t {
			continue
		}
		if !matchesQuery(ind, q) {
			continue
		}
		out = append(out, *ind)
	}
	return out, nil
}

func matchesQuery(ind *threat.Indicator, q string) bool {
	if strings.Contains(strings.ToLower(ind.Indicator), q) {
		return true
	}
	for _, tag := range ind.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) CountBySource(_ context.Context, feedID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, ind := range s.indicators {
		if ind.SourceFeed == feedID {
			n++
		}
	}
	return n, nil
}

// PurgeBySource removes every indicator owned by the feed and returns how
// many rows were dropped.
func (s *MemoryStore) PurgeBySource(_ context.Context, feedID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	kept := s.order[:0]
	for _, key := range s.order {
		ind, ok := s.indicators[key]
		if ok && ind.SourceFeed == feedID {
			delete(s.indicators, key)
			n++
			continue
		}
		kept = append(kept, key)
	}
	s.order = kept
	return n, nil
}
