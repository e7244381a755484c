// Package simidx maintains a persistent similarity index over control
// records: for every entity it keeps the top-K most similar other entities,
// scored by a hybrid of semantic embedding cosine and lexical token overlap
// across multiple text features.
//
// Production-ready features include:
//
//   - Full rebuild and delta-driven incremental update modes with
//     automatic routing between them
//   - Semantic cosine prefilter keeping cost near-linear in corpus size
//   - Hub guardrail delegating pathological deltas to a full rebuild
//   - Bitemporal SQLite version store: every index state is queryable,
//     writes are atomic per run
//   - Corpus snapshots with zstd/lz4 compression on local disk, S3 or
//     MinIO object storage
//   - Structured logging (log/slog), pluggable metrics, throttled
//     progress callbacks
//
// # Quick Start
//
// Open a version store, build an engine and run:
//
//	ctx := context.Background()
//	st, err := store.NewSQLite("./data/index.db")
//	if err != nil {
//	    panic(err)
//	}
//	eng, err := simidx.New(st,
//	    simidx.WithK(4),
//	    simidx.WithLogLevel(slog.LevelInfo),
//	)
//	if err != nil {
//	    panic(err)
//	}
//	defer eng.Close()
//
//	c, err := corpus.Load(ctx, embeddings, texts, exclusions)
//	if err != nil {
//	    panic(err)
//	}
//	res, err := eng.Rebuild(ctx, c)
//
// Apply a nightly delta:
//
//	res, err := eng.Run(ctx, c, &simidx.Delta{
//	    ChangedIDs: changed,
//	    NewIDs:     added,
//	})
//	if res.GuardrailTripped {
//	    // A hub entity changed; the run fell back to a full rebuild.
//	}
//
// Read the current index or an entity's history straight from the store:
//
//	edges, err := st.LoadCurrent(ctx)
//	history, err := st.History(ctx, "ctl-0042")
package simidx

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/engine"
	"github.com/grckit/simidx/store"
)

// Delta names the entities whose source data changed since the last run.
type Delta struct {
	// ChangedIDs are existing entities with modified text or metadata.
	ChangedIDs []string
	// NewIDs are entities appearing for the first time.
	NewIDs []string
}

// RunResult summarizes one completed run.
type RunResult struct {
	// RunID uniquely identifies the run in logs and metrics.
	RunID string
	// Mode is the computation path actually taken.
	Mode engine.Mode
	// Timestamp is the transaction time stamped on every edge the run
	// wrote.
	Timestamp time.Time
	// Duration is the total wall-clock time of the run.
	Duration time.Duration
	// EntitiesTouched counts entities whose neighbor lists were rewritten.
	EntitiesTouched int
	// EdgesWritten counts the edges inserted by the final write.
	EdgesWritten int
	// GuardrailTripped is set when an incremental run was delegated to a
	// full rebuild because its impact set exceeded the guardrail.
	GuardrailTripped bool
}

// Engine is the top-level entry point: it owns the run configuration and
// executes similarity runs against one version store.
//
// Engine is safe for concurrent use, but runs against the same store are
// serialized by the store itself.
type Engine struct {
	store   store.EdgeStore
	eng     *engine.Engine
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New creates an Engine on top of the given version store.
func New(st store.EdgeStore, optFns ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("store must not be nil")
	}
	o := applyOptions(optFns)
	o.cfg.Progress = o.progress

	return &Engine{
		store:   st,
		eng:     engine.New(st, o.scorer, o.cfg),
		logger:  o.logger,
		metrics: o.metricsCollector,
	}, nil
}

// Run executes one similarity run over the corpus.
//
// A nil delta forces a full rebuild. A non-nil delta requests an
// incremental update; the engine still escalates to a full rebuild when the
// delta covers too much of the corpus or the hub guardrail trips.
func (e *Engine) Run(ctx context.Context, c *corpus.Corpus, delta *Delta) (*RunResult, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	runID := uuid.NewString()
	logger := e.logger.WithRunID(runID)
	now := time.Now().UTC()

	var ed *engine.Delta
	if delta != nil {
		ed = &engine.Delta{ChangedIDs: delta.ChangedIDs, NewIDs: delta.NewIDs}
	}
	logger.LogRunStart(ctx, entryMode(ed), c.Size(), ed.Size())
	logger.LogCorpus(ctx, c)

	start := time.Now()
	res, err := e.eng.Run(ctx, c, ed, now)
	duration := time.Since(start)

	if err != nil {
		err = translateError(err)
		e.metrics.RecordRun(entryMode(ed).String(), duration, err)
		logger.LogRunComplete(ctx, nil, err)
		return nil, err
	}

	if res.GuardrailTripped {
		logger.LogGuardrail(ctx, res.AffectedSize, e.eng.Config().GuardrailThreshold)
		e.metrics.RecordGuardrail(res.AffectedSize)
	}
	e.metrics.RecordRun(res.Mode.String(), duration, nil)
	e.metrics.RecordWrite(res.EdgesWritten, res.WriteDuration)
	logger.LogWrite(ctx, res.EdgesWritten, res.WriteDuration, nil)

	out := &RunResult{
		RunID:            runID,
		Mode:             res.Mode,
		Timestamp:        now,
		Duration:         duration,
		EntitiesTouched:  res.Touched,
		EdgesWritten:     res.EdgesWritten,
		GuardrailTripped: res.GuardrailTripped,
	}
	logger.LogRunComplete(ctx, out, nil)
	return out, nil
}

// Rebuild forces a full rebuild regardless of any pending delta.
func (e *Engine) Rebuild(ctx context.Context, c *corpus.Corpus) (*RunResult, error) {
	return e.Run(ctx, c, nil)
}

// Close releases the underlying store. Subsequent runs return ErrClosed.
func (e *Engine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.store.Close()
}

func entryMode(d *engine.Delta) engine.Mode {
	if d == nil {
		return engine.ModeFullRebuild
	}
	return engine.ModeIncremental
}
