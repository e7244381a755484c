package engine

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/internal/mat32"
	"github.com/grckit/simidx/internal/queue"
)

// semanticCandidates runs the cosine prefilter over the whole corpus and
// returns, per row, the union of that row's top-N semantic neighbors across
// all features. The exact hybrid scorer only ever sees pairs surviving this
// pass.
//
// Work is split into (feature, tile) tasks so large corpora parallelize
// without a shared scoreboard: each task owns a disjoint row range of one
// feature and writes into its own slot of the per-feature result. The union
// into roaring bitmaps happens after all tasks finish.
func semanticCandidates(ctx context.Context, c *corpus.Corpus, cfg Config, report func(done int)) ([]*roaring.Bitmap, error) {
	n := c.Size()
	features := c.Features()

	perFeature := make([][][]uint32, len(features))
	for f := range features {
		perFeature[f] = make([][]uint32, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	var progress atomicCounter
	for f := range features {
		m := c.Matrix(f)
		rows := perFeature[f]
		for start := 0; start < n; start += cfg.TileSize {
			start := start
			end := min(start+cfg.TileSize, n)
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scores := make([]float32, n)
				top := queue.NewTopN(cfg.PrefilterTopN)
				for r := start; r < end; r++ {
					if !m.Valid(r) {
						continue
					}
					mat32.DotBatch(m.Row(r), m.Data, m.Dim, scores)
					top.Reset()
					for col := 0; col < n; col++ {
						if col == r || !m.Valid(col) {
							continue
						}
						top.Offer(queue.Candidate{Row: uint32(col), Score: scores[col]})
					}
					rows[r] = top.Rows(nil)
				}
				if report != nil {
					report(progress.add(end - start))
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]*roaring.Bitmap, n)
	for r := 0; r < n; r++ {
		bm := roaring.New()
		for f := range features {
			bm.AddMany(perFeature[f][r])
		}
		candidates[r] = bm
	}
	return candidates, nil
}

// rowCandidates is the single-row prefilter used by incremental rescans:
// the union of the row's top-N cosine neighbors across all features.
func rowCandidates(c *corpus.Corpus, row, topN int) *roaring.Bitmap {
	n := c.Size()
	bm := roaring.New()
	scores := make([]float32, n)
	top := queue.NewTopN(topN)
	for f := range c.Features() {
		m := c.Matrix(f)
		if !m.Valid(row) {
			continue
		}
		mat32.DotBatch(m.Row(row), m.Data, m.Dim, scores)
		top.Reset()
		for col := 0; col < n; col++ {
			if col == row || !m.Valid(col) {
				continue
			}
			top.Offer(queue.Candidate{Row: uint32(col), Score: scores[col]})
		}
		bm.AddMany(top.Rows(nil))
	}
	return bm
}

// sortedKeys returns the set's members sorted, for deterministic iteration.
func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
