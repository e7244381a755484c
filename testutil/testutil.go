// Package testutil provides deterministic corpus fixtures for tests and
// benchmarks.
package testutil

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/grckit/simidx/corpus"
)

// RNG encapsulates a seeded random number generator. It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float32 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float32() float32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float32()
}

// GaussianVectors generates num vectors of the given dimensionality drawn
// from a standard normal distribution, flattened row-major.
func (r *RNG) GaussianVectors(num, dimensions int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	for i := range data {
		data[i] = float32(r.rand.NormFloat64())
	}
	return data
}

// Words returns n pseudo-random lowercase words usable as token text.
func (r *RNG) Words(n int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "word%03d", r.rand.Intn(200))
	}
	return b.String()
}

// CorpusSpec describes a synthetic corpus.
type CorpusSpec struct {
	Entities  int
	Features  []string
	Dimension int
	// WordsPerText is the token count per entity text; 0 disables texts.
	WordsPerText int
	// Exclusions lists parent/child pairs by entity index.
	Exclusions [][2]int
}

// BuildStatic generates a deterministic random corpus source.
// Entity IDs are "ctl-0000" style, so sorted ID order equals index order.
func BuildStatic(rng *RNG, spec CorpusSpec) *corpus.Static {
	ids := EntityIDs(spec.Entities)

	src := &corpus.Static{
		Embeddings:     make(map[string]corpus.FeatureData, len(spec.Features)),
		TextsByFeature: make(map[string]map[string]string, len(spec.Features)),
	}
	for _, f := range spec.Features {
		src.Embeddings[f] = corpus.FeatureData{
			IDs:     ids,
			Dim:     spec.Dimension,
			Vectors: rng.GaussianVectors(spec.Entities, spec.Dimension),
		}
		if spec.WordsPerText > 0 {
			texts := make(map[string]string, len(ids))
			for _, id := range ids {
				texts[id] = rng.Words(spec.WordsPerText)
			}
			src.TextsByFeature[f] = texts
		}
	}
	for _, p := range spec.Exclusions {
		src.ExclusionPairs = append(src.ExclusionPairs, [2]string{ids[p[0]], ids[p[1]]})
	}
	return src
}

// EntityIDs returns n stable entity IDs whose sorted order equals index
// order.
func EntityIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("ctl-%04d", i)
	}
	return ids
}
