package simidx

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/engine"
	"github.com/grckit/simidx/store"
	"github.com/grckit/simidx/testutil"
)

func newTestCorpus(t *testing.T, entities int) *corpus.Corpus {
	t.Helper()
	src := testutil.BuildStatic(testutil.NewRNG(21), testutil.CorpusSpec{
		Entities:     entities,
		Features:     []string{"description", "title"},
		Dimension:    12,
		WordsPerText: 6,
	})
	c, err := corpus.Load(context.Background(), src, src, src)
	require.NoError(t, err)
	return c
}

func newTestEngine(t *testing.T, optFns ...Option) (*Engine, *store.SQLite) {
	t.Helper()
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	eng, err := New(st, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng, st
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestRebuildEndToEnd(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	eng, st := newTestEngine(t,
		WithK(4),
		WithMetricsCollector(metrics),
		WithLogger(NoopLogger()),
	)
	c := newTestCorpus(t, 30)

	res, err := eng.Rebuild(context.Background(), c)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, engine.ModeFullRebuild, res.Mode)
	assert.Equal(t, 30, res.EntitiesTouched)
	assert.False(t, res.GuardrailTripped)
	assert.False(t, res.Timestamp.IsZero())

	edges, err := st.LoadCurrent(context.Background())
	require.NoError(t, err)
	assert.Len(t, edges, res.EdgesWritten)
	for _, e := range edges {
		assert.True(t, e.TxFrom.Equal(res.Timestamp))
	}

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.RunCount)
	assert.Equal(t, int64(1), stats.RebuildCount)
	assert.Equal(t, int64(0), stats.RunErrors)
	assert.Equal(t, int64(res.EdgesWritten), stats.EdgesWritten)
}

func TestRunIncremental(t *testing.T) {
	eng, _ := newTestEngine(t, WithLogLevel(slog.LevelError))
	c := newTestCorpus(t, 30)

	_, err := eng.Rebuild(context.Background(), c)
	require.NoError(t, err)

	res, err := eng.Run(context.Background(), c, &Delta{ChangedIDs: []string{"ctl-0003"}})
	require.NoError(t, err)
	assert.Equal(t, engine.ModeIncremental, res.Mode)
	assert.GreaterOrEqual(t, res.EntitiesTouched, 1)
}

func TestRunAfterClose(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.Close())
	// Close is idempotent.
	require.NoError(t, eng.Close())

	_, err := eng.Run(context.Background(), newTestCorpus(t, 5), nil)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRunTranslatesWriteFailure(t *testing.T) {
	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	eng, err := New(st)
	require.NoError(t, err)
	c := newTestCorpus(t, 10)

	// Destroy the store underneath the engine so the final write fails.
	require.NoError(t, st.Close())

	_, err = eng.Run(context.Background(), c, nil)
	require.Error(t, err)
	var wf *ErrWriteFailed
	require.ErrorAs(t, err, &wf)
	assert.Equal(t, "full_rebuild", wf.Mode)
}

func TestDefaultTuning(t *testing.T) {
	assert.Equal(t, 4, engine.DefaultConfig.K)
	assert.Equal(t, 50, engine.DefaultConfig.PrefilterTopN)
	assert.Equal(t, 500, engine.DefaultConfig.TileSize)
	assert.Equal(t, 20000, engine.DefaultConfig.GuardrailThreshold)
	assert.Equal(t, 0.2, engine.DefaultConfig.DeltaFraction)
}

func TestRunStampsTransactionTime(t *testing.T) {
	eng, st := newTestEngine(t)
	c := newTestCorpus(t, 12)

	before := time.Now().UTC()
	res, err := eng.Rebuild(context.Background(), c)
	require.NoError(t, err)
	after := time.Now().UTC()

	assert.False(t, res.Timestamp.Before(before))
	assert.False(t, res.Timestamp.After(after))

	edges, err := st.LoadCurrent(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, edges)
	for _, e := range edges {
		assert.True(t, e.Current())
		assert.Nil(t, e.TxTo)
	}
}
