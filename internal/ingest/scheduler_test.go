package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedguard/internal/feed"
	"feedguard/internal/store"
)

func TestDue(t *testing.T) {
	now := time.Now()
	f := feed.Feed{RefreshInterval: 60}

	assert.True(t, due(f, now), "never-updated feeds are always due")

	f.LastUpdated = now.Add(-30 * time.Minute)
	assert.False(t, due(f, now))

	f.LastUpdated = now.Add(-60 * time.Minute)
	assert.True(t, due(f, now))

	f.LastUpdated = now.Add(-90 * time.Minute)
	assert.True(t, due(f, now))
}

func TestSchedulerIngestsDueFeeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("1.2.3.4\n"))
	}))
	defer srv.Close()

	registry := feed.NewRegistry()
	results := feed.NewResultLog(feed.DefaultResultRetention)
	engine := NewEngine(registry, store.NewMemoryStore(), results, 5*time.Second)

	enabled, err := registry.Create(feed.Feed{
		Name:    "enabled feed",
		URL:     srv.URL,
		Type:    feed.TypeTXT,
		Enabled: true,
		Fields:  feed.FieldMap{IndicatorField: "indicator"},
	})
	require.NoError(t, err)

	_, err = registry.Create(feed.Feed{
		Name:    "disabled feed",
		URL:     srv.URL,
		Type:    feed.TypeTXT,
		Enabled: false,
		Fields:  feed.FieldMap{IndicatorField: "indicator"},
	})
	require.NoError(t, err)

	sched := NewScheduler(registry, engine, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	require.Eventually(t, func() bool { return hits.Load() >= 1 },
		2*time.Second, 10*time.Millisecond)
	cancel()

	f, err := registry.Get(enabled.ID)
	require.NoError(t, err)
	assert.False(t, f.LastUpdated.IsZero())
	assert.Equal(t, 1, f.IndicatorCount)
}

func TestSchedulerSkipsFreshFeeds(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("1.2.3.4\n"))
	}))
	defer srv.Close()

	registry := feed.NewRegistry()
	results := feed.NewResultLog(feed.DefaultResultRetention)
	engine := NewEngine(registry, store.NewMemoryStore(), results, 5*time.Second)

	f, err := registry.Create(feed.Feed{
		Name:            "fresh feed",
		URL:             srv.URL,
		Type:            feed.TypeTXT,
		Enabled:         true,
		RefreshInterval: 60,
		Fields:          feed.FieldMap{IndicatorField: "indicator"},
	})
	require.NoError(t, err)
	registry.SetRunSuccess(f.ID, time.Now(), 0)

	sched := NewScheduler(registry, engine, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	assert.Zero(t, hits.Load(), "recently ingested feed must not be re-fetched")
}

func TestSchedulerSerializesPerFeed(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		if n > maxInFlight.Load() {
			maxInFlight.Store(n)
		}
		time.Sleep(50 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte("1.2.3.4\n"))
	}))
	defer srv.Close()

	registry := feed.NewRegistry()
	results := feed.NewResultLog(feed.DefaultResultRetention)
	engine := NewEngine(registry, store.NewMemoryStore(), results, 5*time.Second)

	f, err := registry.Create(feed.Feed{
		Name:    "slow feed",
		URL:     srv.URL,
		Type:    feed.TypeTXT,
		Enabled: true,
		Fields:  feed.FieldMap{IndicatorField: "indicator"},
	})
	require.NoError(t, err)

	// Fire two concurrent on-demand runs; the engine must serialize them.
	done := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, err := engine.Ingest(context.Background(), f.ID)
			assert.NoError(t, err)
		}()
	}
	<-done
	<-done

	assert.Equal(t, int64(1), maxInFlight.Load(), "no two concurrent runs for the same feed id")
}
