package engine

import (
	"context"
	"time"

	"github.com/grckit/simidx/corpus"
)

// incremental applies a delta on top of the store's current index state.
//
// Three groups of entities can change: the delta members themselves
// (forward pass), entities that currently list a changed entity as a
// neighbor (reverse-impact rescan), and entities a delta member newly
// displaces into (reverse candidate check during the forward pass). Only
// the union of those three is rewritten; everything else keeps its stored
// edges untouched.
func (e *Engine) incremental(ctx context.Context, c *corpus.Corpus, delta *Delta, now time.Time) (*Result, error) {
	res := &Result{Mode: ModeIncremental}

	current, err := e.store.LoadCurrent(ctx)
	if err != nil {
		return nil, err
	}
	w := FromEdges(e.cfg.K, current)

	deltaSet := delta.set()
	changed := make(map[string]struct{}, len(delta.ChangedIDs))
	for _, id := range delta.ChangedIDs {
		changed[id] = struct{}{}
	}

	// Reverse impact: entities whose stored lists reference a changed
	// entity hold stale scores. Delta members are skipped here since the
	// forward pass rebuilds them from scratch anyway.
	affected := make(map[string]struct{})
	for _, edge := range current {
		if _, ok := changed[edge.SimilarID]; !ok {
			continue
		}
		if _, inDelta := deltaSet[edge.RefID]; inDelta {
			continue
		}
		affected[edge.RefID] = struct{}{}
	}
	res.AffectedSize = len(affected)

	// Hub guardrail. A change to a broadly-referenced entity can fan out
	// to a large share of the corpus; past this point the tiled full
	// rebuild is cheaper than tens of thousands of single-row rescans.
	if len(affected) > e.cfg.GuardrailThreshold {
		res.Mode = ModeFullRebuild
		res.GuardrailTripped = true
		return e.rebuild(ctx, c, now, res)
	}

	touched := make(map[string]struct{}, len(affected)+len(deltaSet))

	affectedIDs := sortedKeys(affected)
	impactProgress := newProgressReporter(e.cfg.Progress, PhaseImpactScan, len(affectedIDs), e.cfg.ProgressStride)
	for i, id := range affectedIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, ok := c.Row(id)
		if !ok {
			continue
		}
		w.Replace(id, e.scoreRow(c, row))
		touched[id] = struct{}{}
		impactProgress.step(i + 1)
	}

	// Forward pass over the delta. Each pair score is computed once and
	// reused for the reverse direction: the scorer is symmetric, so the
	// same value decides whether the delta member displaces into the
	// candidate's list. Candidates that are themselves in the delta are
	// skipped; their own forward pass covers the pair.
	deltaIDs := sortedKeys(deltaSet)
	forwardProgress := newProgressReporter(e.cfg.Progress, PhaseForwardPass, len(deltaIDs), e.cfg.ProgressStride)
	for i, id := range deltaIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, ok := c.Row(id)
		if !ok {
			// Named in the delta but absent from this corpus extract.
			continue
		}

		scored := e.scoreRow(c, row)
		w.Replace(id, scored)
		touched[id] = struct{}{}

		for _, n := range scored {
			if _, inDelta := deltaSet[n.ID]; inDelta {
				continue
			}
			if n.Score <= w.KthScore(n.ID) {
				continue
			}
			if w.Offer(n.ID, Neighbor{ID: id, Score: n.Score, FeatureScores: n.FeatureScores}) {
				touched[n.ID] = struct{}{}
			}
		}
		forwardProgress.step(i + 1)
	}

	refIDs := sortedKeys(touched)
	edges := w.Edges(refIDs)
	newProgressReporter(e.cfg.Progress, PhaseWrite, 1, 1).step(0)
	writeStart := time.Now()
	if err := e.store.ReplaceSubset(ctx, refIDs, edges, now); err != nil {
		return nil, &WriteError{Mode: ModeIncremental, Err: err}
	}
	res.WriteDuration = time.Since(writeStart)

	res.Touched = len(refIDs)
	res.EdgesWritten = len(edges)
	return res, nil
}

// scoreRow runs the single-row prefilter and hybrid scorer for one entity,
// returning all its positively scored candidates sorted strongest first.
func (e *Engine) scoreRow(c *corpus.Corpus, row int) []Neighbor {
	features := c.Features()
	var out []Neighbor
	it := rowCandidates(c, row, e.cfg.PrefilterTopN).Iterator()
	for it.HasNext() {
		col := int(it.Next())
		pair, ok := e.scorer.Score(c, row, col)
		if !ok || pair.Final <= 0 {
			continue
		}
		out = append(out, Neighbor{
			ID:            c.ID(col),
			Score:         float64(pair.Final),
			FeatureScores: pair.FeatureMap(features),
		})
	}
	sortNeighbors(out)
	return out
}
