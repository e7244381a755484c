// Package scoring computes the hybrid similarity score between two corpus
// entities across all features.
package scoring

import (
	"github.com/grckit/simidx/corpus"
	"github.com/grckit/simidx/internal/mat32"
)

// Options contains the scoring constants.
type Options struct {
	// SemanticWeight scales the cosine component of a feature score.
	SemanticWeight float32
	// LexicalWeight scales the token Jaccard component.
	LexicalWeight float32
	// DuplicateCosine is the near-duplicate detection threshold. A feature
	// whose cosine exceeds it is treated as cloned text.
	DuplicateCosine float32
	// DuplicateCap is the fixed score assigned to near-duplicate features,
	// keeping copy-paste boilerplate from dominating the ranking.
	DuplicateCap float32
	// DiversityThreshold is the minimum uncapped feature score that counts
	// toward the diversity bonus.
	DiversityThreshold float32
	// DiversityBonus is the multiplier increment per qualifying feature.
	DiversityBonus float32
}

// DefaultOptions contains the production scoring constants.
var DefaultOptions = Options{
	SemanticWeight:     0.6,
	LexicalWeight:      0.4,
	DuplicateCosine:    0.99,
	DuplicateCap:       0.3,
	DiversityThreshold: 0.2,
	DiversityBonus:     0.05,
}

// Pair is the scored result for one entity pair.
type Pair struct {
	// Final is the diversity-weighted aggregate score.
	Final float32
	// Features holds the per-feature scores, ordered as the corpus orders
	// its features.
	Features []float32
}

// Scorer scores entity pairs. It is stateless and safe for concurrent use.
//
// Score is symmetric by construction: Score(c, i, j) and Score(c, j, i)
// produce identical results. The incremental engine's reverse candidate
// check depends on this property.
type Scorer struct {
	opts Options
}

// New creates a Scorer.
func New(optFns ...func(o *Options)) *Scorer {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Scorer{opts: opts}
}

// Score computes the hybrid similarity between rows i and j.
//
// Per feature: 0 if either row is invalid; otherwise a weighted sum of the
// clipped cosine and the token Jaccard, except that near-duplicate text
// (cosine above DuplicateCosine) scores the fixed DuplicateCap regardless
// of Jaccard. The aggregate is the raw sum times a diversity multiplier
// rewarding pairs similar across several independent features.
//
// Excluded pairs and self-pairs return ok = false: no result, not a zero
// score.
func (s *Scorer) Score(c *corpus.Corpus, i, j int) (Pair, bool) {
	if i == j {
		return Pair{}, false
	}
	if c.Excluded(c.ID(i), c.ID(j)) {
		return Pair{}, false
	}

	features := c.Features()
	p := Pair{Features: make([]float32, len(features))}

	var raw float32
	diverse := 0
	for f := range features {
		m := c.Matrix(f)
		if !m.Valid(i) || !m.Valid(j) {
			continue
		}

		cosine := mat32.Clip01(mat32.Dot(m.Row(i), m.Row(j)))
		if cosine > s.opts.DuplicateCosine {
			p.Features[f] = s.opts.DuplicateCap
			raw += s.opts.DuplicateCap
			continue
		}

		jaccard := corpus.Jaccard(c.Tokens(f, i), c.Tokens(f, j))
		score := s.opts.SemanticWeight*cosine + s.opts.LexicalWeight*jaccard
		p.Features[f] = score
		raw += score
		if score > s.opts.DiversityThreshold {
			diverse++
		}
	}

	p.Final = raw * (1 + s.opts.DiversityBonus*float32(diverse))
	return p, true
}

// FeatureMap converts the per-feature scores into a named map for
// persistence.
func (p Pair) FeatureMap(features []string) map[string]float64 {
	out := make(map[string]float64, len(features))
	for f, name := range features {
		out[name] = float64(p.Features[f])
	}
	return out
}
