package feed

import "sync"

// DefaultResultRetention bounds the ingestion history kept in memory.
const DefaultResultRetention = 100

// ResultLog is an append-only, newest-first history of ingestion results
// with a fixed retention count. Results are never mutated after Append.
type ResultLog struct {
	mu      sync.Mutex
	results []IngestionResult
	max     int
}

func NewResultLog(max int) *ResultLog {
	if max < 1 {
		max = DefaultResultRetention
	}
	return &ResultLog{max: max}
}

func (l *ResultLog) Append(r IngestionResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append([]IngestionResult{r}, l.results...)
	if len(l.results) > l.max {
		l.results = l.results[:l.max]
	}
}

// List returns results newest first, optionally restricted to one feed and
// capped at limit (0 means no cap).
func (l *ResultLog) List(feedID string, limit int) []IngestionResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]IngestionResult, 0, len(l.results))
	for _, r := range l.results {
		if feedID != "" && r.FeedID != feedID {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
