package engine

import (
	"context"
	"time"

	"github.com/grckit/simidx/corpus"
)

// rebuild recomputes the whole index and swaps it in atomically.
//
// The semantic prefilter narrows each row to a candidate set before the
// exact hybrid scorer runs, so cost stays near n * topN * features instead
// of n squared. Context is checked at phase boundaries and per scored row;
// cancellation before the write leaves the store untouched.
func (e *Engine) rebuild(ctx context.Context, c *corpus.Corpus, now time.Time, res *Result) (*Result, error) {
	n := c.Size()

	// Prefilter work is per (feature, row), so the phase total reflects that.
	prefilterProgress := newProgressReporter(e.cfg.Progress, PhaseSemanticPrefilter, n*len(c.Features()), e.cfg.ProgressStride)
	candidates, err := semanticCandidates(ctx, c, e.cfg, prefilterProgress.step)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	w := NewWorkingIndex(e.cfg.K)
	features := c.Features()
	scoringProgress := newProgressReporter(e.cfg.Progress, PhaseHybridScoring, n, e.cfg.ProgressStride)

	var scratch []Neighbor
	for row := 0; row < n; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scratch = scratch[:0]
		it := candidates[row].Iterator()
		for it.HasNext() {
			col := int(it.Next())
			pair, ok := e.scorer.Score(c, row, col)
			if !ok || pair.Final <= 0 {
				continue
			}
			scratch = append(scratch, Neighbor{
				ID:            c.ID(col),
				Score:         float64(pair.Final),
				FeatureScores: pair.FeatureMap(features),
			})
		}
		w.Replace(c.ID(row), scratch)
		scoringProgress.step(row + 1)
	}

	edges := w.Edges(c.IDs())
	newProgressReporter(e.cfg.Progress, PhaseWrite, 1, 1).step(0)
	writeStart := time.Now()
	if err := e.store.ReplaceAll(ctx, edges, now); err != nil {
		return nil, &WriteError{Mode: ModeFullRebuild, Err: err}
	}
	res.WriteDuration = time.Since(writeStart)

	res.Touched = n
	res.EdgesWritten = len(edges)
	return res, nil
}
