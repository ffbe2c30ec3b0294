package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedguard/internal/threat"
)

func candidate(value, feedID string) threat.Candidate {
	return threat.Candidate{
		Indicator:  value,
		Type:       threat.Classify(value),
		Confidence: 50,
		SourceFeed: feedID,
	}
}

func TestUpsertNewIndicator(t *testing.T) {
	s := NewMemoryStore()
	ind, isNew, err := s.Upsert(context.Background(), candidate("1.2.3.4", "feed-a"))
	require.NoError(t, err)
	assert.True(t, isNew)
	assert.NotEmpty(t, ind.ID)
	assert.Equal(t, ind.FirstSeen, ind.LastSeen)
}

func TestUpsertPreservesIdentityAcrossRuns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, isNew, err := s.Upsert(ctx, candidate("1.2.3.4", "feed-a"))
	require.NoError(t, err)
	require.True(t, isNew)

	time.Sleep(time.Millisecond)

	c := candidate("1.2.3.4", "feed-a")
	c.Confidence = 90
	c.Tags = []string{"botnet"}
	second, isNew, err := s.Upsert(ctx, c)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.FirstSeen, second.FirstSeen)
	assert.True(t, second.LastSeen.After(first.LastSeen), "last_seen strictly increases")
	assert.Equal(t, 90, second.Confidence)
	assert.Equal(t, []string{"botnet"}, second.Tags)

	n, err := s.CountBySource(ctx, "feed-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpsertSameValueDifferentFeeds(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	a, isNew, err := s.Upsert(ctx, candidate("1.2.3.4", "feed-a"))
	require.NoError(t, err)
	require.True(t, isNew)

	b, isNew, err := s.Upsert(ctx, candidate("1.2.3.4", "feed-b"))
	require.NoError(t, err)
	assert.True(t, isNew, "uniqueness is scoped to (value, source_feed)")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, v := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"} {
		_, _, err := s.Upsert(ctx, candidate(v, "feed-a"))
		require.NoError(t, err)
	}
	_, _, err := s.Upsert(ctx, candidate("4.4.4.4", "feed-b"))
	require.NoError(t, err)

	all, err := s.Query(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	onlyA, err := s.Query(ctx, "feed-a", 0)
	require.NoError(t, err)
	require.Len(t, onlyA, 3)
	assert.Equal(t, "1.1.1.1", onlyA[0].Indicator, "insertion order is preserved")

	limited, err := s.Query(ctx, "feed-a", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSearch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	c := candidate("malware.test", "feed-a")
	c.Tags = []string{"Botnet", "c2"}
	_, _, err := s.Upsert(ctx, c)
	require.NoError(t, err)
	_, _, err = s.Upsert(ctx, candidate("1.2.3.4", "feed-a"))
	require.NoError(t, err)

	byValue, err := s.Search(ctx, "MALWARE", "")
	require.NoError(t, err)
	require.Len(t, byValue, 1)
	assert.Equal(t, "malware.test", byValue[0].Indicator)

	byTag, err := s.Search(ctx, "botnet", "")
	require.NoError(t, err)
	assert.Len(t, byTag, 1)

	byType, err := s.Search(ctx, ".", threat.TypeIP)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "1.2.3.4", byType[0].Indicator)

	none, err := s.Search(ctx, "phishing", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPurgeBySource(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, v := range []string{"1.1.1.1", "2.2.2.2"} {
		_, _, err := s.Upsert(ctx, candidate(v, "feed-a"))
		require.NoError(t, err)
	}
	_, _, err := s.Upsert(ctx, candidate("3.3.3.3", "feed-b"))
	require.NoError(t, err)

	n, err := s.PurgeBySource(ctx, "feed-a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remainingA, err := s.CountBySource(ctx, "feed-a")
	require.NoError(t, err)
	assert.Zero(t, remainingA)

	remainingB, err := s.Query(ctx, "feed-b", 0)
	require.NoError(t, err)
	assert.Len(t, remainingB, 1, "purge leaves other feeds untouched")
}

func TestUpsertAfterPurge(t *testing.T) {
	// Stale bloom entries after a purge must not break correctness.
	s := NewMemoryStore()
	ctx := context.Background()

	_, _, err := s.Upsert(ctx, candidate("1.2.3.4", "feed-a"))
	require.NoError(t, err)
	_, err = s.PurgeBySource(ctx, "feed-a")
	require.NoError(t, err)

	_, isNew, err := s.Upsert(ctx, candidate("1.2.3.4", "feed-a"))
	require.NoError(t, err)
	assert.True(t, isNew, "purged indicator re-inserts as new")
}
