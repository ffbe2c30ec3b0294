package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"feedguard/internal/feed"
	"feedguard/internal/metrics"
	"feedguard/internal/store"
	"feedguard/internal/threat"
)

const defaultUserAgent = "feedguard/1.0"

// Engine orchestrates ingestion runs: fetch, parse, map, validate, upsert,
// record result. Runs for the same feed id are strictly serialized; runs
// for different feeds may execute concurrently.
type Engine struct {
	registry *feed.Registry
	store    store.IndicatorStore
	results  *feed.ResultLog
	client   *http.Client
	timeout  time.Duration

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	running map[string]bool
}

func NewEngine(reg *feed.Registry, st store.IndicatorStore, results *feed.ResultLog, fetchTimeout time.Duration) *Engine {
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &Engine{
		registry: reg,
		store:    st,
		results:  results,
		client:   &http.Client{},
		timeout:  fetchTimeout,
		locks:    make(map[string]*sync.Mutex),
		running:  make(map[string]bool),
	}
}

// Busy reports whether a run for the feed is currently in flight. The
// scheduler uses it to skip feeds instead of queueing behind them.
func (e *Engine) Busy(feedID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running[feedID]
}

// Ingest runs one ingestion for the feed and returns its result. The only
// error it returns is an unknown feed id; every in-run failure is captured
// in the result instead.
func (e *Engine) Ingest(ctx context.Context, feedID string) (*feed.IngestionResult, error) {
	if _, err := e.registry.Get(feedID); err != nil {
		return nil, err
	}

	lock := e.feedLock(feedID)
	lock.Lock()
	defer lock.Unlock()
	e.setRunning(feedID, true)
	defer e.setRunning(feedID, false)

	// Re-read under the run lock: an admin edit or delete may have landed
	// while we were waiting.
	f, err := e.registry.Get(feedID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &feed.IngestionResult{
		FeedID:    feedID,
		Errors:    []string{},
		Timestamp: start,
	}

	slog.Info("starting feed ingestion", "feed", f.Name, "feed_id", feedID)

	if err := e.run(ctx, f, result); err != nil {
		result.Errors = append(result.Errors, err.Error())
		e.registry.SetRunFailure(feedID, err.Error())
		metrics.IngestionRuns.WithLabelValues("failure").Inc()
		slog.Error("feed ingestion failed", "feed", f.Name, "err", err)
	} else {
		result.Success = true
		count, cErr := e.store.CountBySource(ctx, feedID)
		if cErr != nil {
			count = f.IndicatorCount
			slog.Error("indicator count recompute failed", "feed", f.Name, "err", cErr)
		}
		e.registry.SetRunSuccess(feedID, time.Now(), count)
		metrics.IngestionRuns.WithLabelValues("success").Inc()
		metrics.FeedIndicators.WithLabelValues(feedID).Set(float64(count))
		slog.Info("feed ingestion completed", "feed", f.Name,
			"processed", result.IndicatorsProcessed,
			"added", result.IndicatorsAdded,
			"updated", result.IndicatorsUpdated)
	}

	elapsed := time.Since(start)
	result.ProcessingTime = elapsed.Milliseconds()
	metrics.IngestionDuration.WithLabelValues(string(f.Type)).Observe(elapsed.Seconds())
	e.results.Append(*result)
	return result, nil
}

// run executes the fallible stages. A returned error is terminal for the
// run (transport or format failure); record-level problems only land in
// result.Errors.
func (e *Engine) run(ctx context.Context, f *feed.Feed, result *feed.IngestionResult) error {
	body, err := e.fetch(ctx, f)
	if err != nil {
		return err
	}

	records, err := Parse(body, f.Type)
	if err != nil {
		return err
	}

	fields := f.Fields
	if f.Type == feed.TypeTXT {
		fields = feed.FieldMap{IndicatorField: txtIndicatorField}
	}

	now := time.Now()
	for _, rec := range records {
		cand, ok := MapRecord(rec, fields, now)
		if !ok {
			continue
		}
		if !threat.Valid(cand.Indicator, cand.Type) {
			continue
		}
		if !PassesFilters(cand, f.Filters) {
			continue
		}
		cand.SourceFeed = f.ID
		result.IndicatorsProcessed++

		_, isNew, err := e.store.Upsert(ctx, *cand)
		if err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("processing indicator %s: %v", cand.Indicator, err))
			continue
		}
		if isNew {
			result.IndicatorsAdded++
			metrics.IndicatorsUpserted.WithLabelValues("added").Inc()
		} else {
			result.IndicatorsUpdated++
			metrics.IndicatorsUpserted.WithLabelValues("updated").Inc()
		}
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, f *feed.Feed) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range Headers(f.Auth) {
		req.Header.Set(k, v)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

func (e *Engine) feedLock(feedID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[feedID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[feedID] = lock
	}
	return lock
}

func (e *Engine) setRunning(feedID string, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v {
		e.running[feedID] = true
	} else {
		delete(e.running, feedID)
	}
}
