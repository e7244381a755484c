package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func edge(ref, sim string, rank int, score float64) Edge {
	return Edge{
		RefID:     ref,
		SimilarID: sim,
		Rank:      rank,
		Score:     score,
		FeatureScores: map[string]float64{
			"title": score,
		},
	}
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := []Edge{
		edge("a", "b", 1, 0.9),
		edge("a", "c", 2, 0.5),
		edge("b", "a", 1, 0.9),
	}
	require.NoError(t, s.ReplaceAll(ctx, first, t0))

	current, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 3)
	assert.Equal(t, "a", current[0].RefID)
	assert.Equal(t, 1, current[0].Rank)
	assert.Equal(t, 0.9, current[0].Score)
	assert.Equal(t, map[string]float64{"title": 0.9}, current[0].FeatureScores)
	assert.True(t, current[0].Current())
	assert.Equal(t, t0, current[0].TxFrom)

	// Second rebuild supersedes everything.
	t1 := t0.Add(time.Hour)
	second := []Edge{edge("a", "d", 1, 0.8)}
	require.NoError(t, s.ReplaceAll(ctx, second, t1))

	current, err = s.LoadCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "d", current[0].SimilarID)
	assert.Equal(t, t1, current[0].TxFrom)

	// History keeps the superseded rows with a closed interval.
	hist, err := s.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, hist, 3)
	require.NotNil(t, hist[0].TxTo)
	assert.Equal(t, t1, *hist[0].TxTo)
	assert.Nil(t, hist[2].TxTo)
}

func TestReplaceSubset(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceAll(ctx, []Edge{
		edge("a", "b", 1, 0.9),
		edge("b", "a", 1, 0.9),
		edge("c", "a", 1, 0.4),
	}, t0))

	// Replace only "a": "b" and "c" keep their historical rows untouched.
	t1 := t0.Add(time.Hour)
	require.NoError(t, s.ReplaceSubset(ctx, []string{"a"}, []Edge{
		edge("a", "c", 1, 0.95),
	}, t1))

	current, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 3)

	byRef := map[string]Edge{}
	for _, e := range current {
		byRef[e.RefID] = e
	}
	assert.Equal(t, "c", byRef["a"].SimilarID)
	assert.Equal(t, t1, byRef["a"].TxFrom)
	assert.Equal(t, t0, byRef["b"].TxFrom)
	assert.Equal(t, t0, byRef["c"].TxFrom)

	hist, err := s.History(ctx, "a")
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.NotNil(t, hist[0].TxTo)
	assert.Equal(t, t1, *hist[0].TxTo)
}

func TestReplaceSubsetTouchesOnlyListedRefs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceAll(ctx, []Edge{edge("a", "b", 1, 0.9)}, t0))

	// A subset write for an entity with no prior rows just inserts.
	t1 := t0.Add(time.Minute)
	require.NoError(t, s.ReplaceSubset(ctx, []string{"z"}, []Edge{
		edge("z", "a", 1, 0.7),
	}, t1))

	current, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Len(t, current, 2)

	// Empty ref set is a no-op.
	require.NoError(t, s.ReplaceSubset(ctx, nil, nil, t1))
}

func TestReplaceSubsetIdempotentRetry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	require.NoError(t, s.ReplaceAll(ctx, []Edge{edge("a", "b", 1, 0.9)}, t0))
	require.NoError(t, s.ReplaceSubset(ctx, []string{"a"}, []Edge{edge("a", "c", 1, 0.95)}, t1))

	// Retrying the same subset write closes the rows it just wrote and
	// re-inserts identical ones: current state is unchanged.
	require.NoError(t, s.ReplaceSubset(ctx, []string{"a"}, []Edge{edge("a", "c", 1, 0.95)}, t1))

	current, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, "c", current[0].SimilarID)
	assert.Equal(t, 0.95, current[0].Score)
}

func TestEmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	current, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	assert.Empty(t, current)

	hist, err := s.History(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestNilFeatureScores(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now()

	e := Edge{RefID: "a", SimilarID: "b", Rank: 1, Score: 0.5}
	require.NoError(t, s.ReplaceAll(ctx, []Edge{e}, now))

	current, err := s.LoadCurrent(ctx)
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Nil(t, current[0].FeatureScores)
}
