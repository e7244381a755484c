package scoring

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/testutil"
)

// loadCorpus builds a corpus from a static source, failing the test on error.
func loadCorpus(t *testing.T, src *corpus.Static) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Load(context.Background(), src, src, src)
	require.NoError(t, err)
	return c
}

func TestScoreHybridWeighting(t *testing.T) {
	// One feature, three entities. cosine(A,B)=0.95, cosine(A,C)=0.1,
	// jaccard(A,B)=0.5, jaccard(A,C)=0.
	sinB := float32(math.Sqrt(1 - 0.95*0.95))
	sinC := float32(math.Sqrt(1 - 0.1*0.1))
	src := &corpus.Static{
		Embeddings: map[string]corpus.FeatureData{
			"title": {
				IDs: []string{"A", "B", "C"},
				Dim: 2,
				Vectors: []float32{
					1, 0,
					0.95, sinB,
					0.1, sinC,
				},
			},
		},
		TextsByFeature: map[string]map[string]string{
			"title": {
				"A": "alpha beta",
				"B": "alpha beta gamma delta",
				// C has no overlapping tokens with A.
				"C": "omega",
			},
		},
	}
	c := loadCorpus(t, src)
	s := New()

	a, _ := c.Row("A")
	b, _ := c.Row("B")
	cc, _ := c.Row("C")

	ab, ok := s.Score(c, a, b)
	require.True(t, ok)
	assert.InDelta(t, 0.6*0.95+0.4*0.5, ab.Features[0], 1e-4) // 0.77

	ac, ok := s.Score(c, a, cc)
	require.True(t, ok)
	assert.InDelta(t, 0.06, ac.Features[0], 1e-4)

	// B is A's rank-1 neighbor.
	assert.Greater(t, ab.Final, ac.Final)
}

func TestScoreDuplicateCap(t *testing.T) {
	// Identical vectors (cosine 1.0) with identical text (jaccard 1.0):
	// the feature contributes exactly the cap, never the weighted sum.
	src := &corpus.Static{
		Embeddings: map[string]corpus.FeatureData{
			"title": {
				IDs:     []string{"P", "Q"},
				Dim:     2,
				Vectors: []float32{3, 4, 3, 4},
			},
		},
		TextsByFeature: map[string]map[string]string{
			"title": {"P": "inherited boilerplate text", "Q": "inherited boilerplate text"},
		},
	}
	c := loadCorpus(t, src)
	s := New()

	p, ok := s.Score(c, 0, 1)
	require.True(t, ok)
	assert.Equal(t, float32(0.3), p.Features[0])
	// Capped features do not earn the diversity bonus.
	assert.Equal(t, float32(0.3), p.Final)
}

func TestScoreInvalidFeatureContributesZero(t *testing.T) {
	src := &corpus.Static{
		Embeddings: map[string]corpus.FeatureData{
			"title": {
				IDs:     []string{"A", "B"},
				Dim:     2,
				Vectors: []float32{1, 0, 0.6, 0.8},
			},
			"description": {
				// B has a zero vector here: invalid.
				IDs:     []string{"A", "B"},
				Dim:     2,
				Vectors: []float32{1, 0, 0, 0},
			},
		},
	}
	c := loadCorpus(t, src)
	s := New()

	p, ok := s.Score(c, 0, 1)
	require.True(t, ok)

	// Feature order is sorted: description first, then title.
	assert.Equal(t, float32(0), p.Features[0])
	assert.InDelta(t, 0.6*0.6, p.Features[1], 1e-4)
}

func TestScoreDiversityBonus(t *testing.T) {
	// Two independent features both above the diversity threshold.
	src := &corpus.Static{
		Embeddings: map[string]corpus.FeatureData{
			"title": {
				IDs:     []string{"A", "B"},
				Dim:     2,
				Vectors: []float32{1, 0, 0.8, 0.6},
			},
			"description": {
				IDs:     []string{"A", "B"},
				Dim:     2,
				Vectors: []float32{0, 1, 0.6, 0.8},
			},
		},
	}
	c := loadCorpus(t, src)
	s := New()

	p, ok := s.Score(c, 0, 1)
	require.True(t, ok)

	raw := p.Features[0] + p.Features[1]
	assert.InDelta(t, raw*1.1, p.Final, 1e-4)
}

func TestScoreExcludedAndSelfPairs(t *testing.T) {
	src := &corpus.Static{
		Embeddings: map[string]corpus.FeatureData{
			"title": {
				IDs:     []string{"child", "parent"},
				Dim:     2,
				Vectors: []float32{1, 0, 1, 0},
			},
		},
		ExclusionPairs: [][2]string{{"parent", "child"}},
	}
	c := loadCorpus(t, src)
	s := New()

	_, ok := s.Score(c, 0, 1)
	assert.False(t, ok, "excluded pair must return no result")
	_, ok = s.Score(c, 1, 0)
	assert.False(t, ok)
	_, ok = s.Score(c, 0, 0)
	assert.False(t, ok, "self pair must return no result")
}

func TestScoreSymmetry(t *testing.T) {
	rng := testutil.NewRNG(7)
	src := testutil.BuildStatic(rng, testutil.CorpusSpec{
		Entities:     40,
		Features:     []string{"title", "description", "owner"},
		Dimension:    16,
		WordsPerText: 12,
	})
	c := loadCorpus(t, src)
	s := New()

	for trial := 0; trial < 200; trial++ {
		i := rng.Intn(c.Size())
		j := rng.Intn(c.Size())
		if i == j {
			continue
		}

		pij, okij := s.Score(c, i, j)
		pji, okji := s.Score(c, j, i)
		require.Equal(t, okij, okji)
		if !okij {
			continue
		}
		assert.Equal(t, pij.Final, pji.Final, "score(%d,%d) asymmetric", i, j)
		assert.Equal(t, pij.Features, pji.Features)
	}
}

func TestFeatureMap(t *testing.T) {
	p := Pair{Features: []float32{0.5, 0.25}}
	m := p.FeatureMap([]string{"description", "title"})
	assert.Equal(t, map[string]float64{"description": 0.5, "title": 0.25}, m)
}
