package simidx_test

import (
	"context"
	"fmt"
	"log/slog"

	simidx "github.com/grckit/simidx"
	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/store"
)

// Example demonstrates a full rebuild followed by an incremental update.
func Example() {
	ctx := context.Background()

	st, err := store.NewSQLite("./data/index.db")
	if err != nil {
		panic(err)
	}

	eng, err := simidx.New(st,
		simidx.WithK(4),
		simidx.WithLogLevel(slog.LevelInfo),
	)
	if err != nil {
		panic(err)
	}
	defer eng.Close()

	// Sources would normally be backed by the embedding pipeline; Static
	// holds precomputed data in memory.
	src := &corpus.Static{
		Embeddings: map[string]corpus.FeatureData{
			"description": {
				IDs:     []string{"ctl-0001", "ctl-0002"},
				Dim:     3,
				Vectors: []float32{0.1, 0.9, 0.2, 0.2, 0.8, 0.1},
			},
		},
		TextsByFeature: map[string]map[string]string{
			"description": {
				"ctl-0001": "review quarterly access grants",
				"ctl-0002": "review monthly access grants",
			},
		},
	}

	c, err := corpus.Load(ctx, src, src, src)
	if err != nil {
		panic(err)
	}

	res, err := eng.Rebuild(ctx, c)
	if err != nil {
		panic(err)
	}
	fmt.Printf("mode=%s edges=%d\n", res.Mode, res.EdgesWritten)

	// Nightly delta run.
	res, err = eng.Run(ctx, c, &simidx.Delta{ChangedIDs: []string{"ctl-0002"}})
	if err != nil {
		panic(err)
	}
	fmt.Printf("mode=%s touched=%d\n", res.Mode, res.EntitiesTouched)
}
