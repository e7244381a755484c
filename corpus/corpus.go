// Package corpus loads and normalizes the per-run input of the similarity
// engine: per-feature embedding matrices, lexical token sets and the
// parent/child exclusion graph.
//
// A Corpus is immutable once loaded. All entities are reindexed to one dense
// row order shared by every feature, so engine passes can address vectors,
// tokens and validity by row instead of by entity ID.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/grckit/simidx/internal/mat32"
)

// ErrNoEmbeddings is returned when no feature contributes a single usable
// vector. A run aborts before any write in that case.
var ErrNoEmbeddings = errors.New("corpus: no usable embedding data")

// FeatureData is the raw per-feature payload handed over by the embedding
// pipeline: a dense matrix in the pipeline's own row order plus per-entity
// bookkeeping. Supplied once per run, read-only.
type FeatureData struct {
	// IDs gives the entity for each matrix row.
	IDs []string
	// Dim is the embedding dimensionality.
	Dim int
	// Vectors is the row-major len(IDs) x Dim matrix.
	Vectors []float32
	// Hashes maps entity ID to the content hash of the embedded text.
	Hashes map[string]string
	// Distinguishing marks entities whose text is their own rather than
	// inherited boilerplate. Diagnostics only, never used for scoring.
	Distinguishing map[string]bool
}

// EmbeddingSource supplies per-feature embedding data for one run.
type EmbeddingSource interface {
	Load(ctx context.Context) (map[string]FeatureData, error)
}

// TokenSource supplies cleaned per-entity text for one feature.
// The engine owns tokenization.
type TokenSource interface {
	Texts(ctx context.Context, feature string) (map[string]string, error)
}

// ExclusionSource supplies direct parent/child pairs that must never be
// reported as similar.
type ExclusionSource interface {
	Pairs(ctx context.Context) ([][2]string, error)
}

// FeatureMatrix is one feature's dense, L2-normalized embedding matrix in
// corpus row order.
type FeatureMatrix struct {
	Name string
	Dim  int

	// Data is the row-major n x Dim matrix. Invalid rows are all zero.
	Data []float32

	valid          []bool
	distinguishing []bool
	hashes         []string
	validCount     int
}

// Row returns the vector for the given corpus row.
func (m *FeatureMatrix) Row(i int) []float32 {
	return m.Data[i*m.Dim : (i+1)*m.Dim]
}

// Valid reports whether the row holds a usable (non-zero, normalized) vector.
func (m *FeatureMatrix) Valid(i int) bool { return m.valid[i] }

// ValidCount returns the number of usable rows.
func (m *FeatureMatrix) ValidCount() int { return m.validCount }

// Distinguishing reports the diagnostics mask for the row.
func (m *FeatureMatrix) Distinguishing(i int) bool { return m.distinguishing[i] }

// Hash returns the content hash recorded for the row, if any.
func (m *FeatureMatrix) Hash(i int) string { return m.hashes[i] }

// Corpus is the dense, reindexed view of one run's input.
type Corpus struct {
	ids      []string
	rows     map[string]int
	features []string
	matrices []*FeatureMatrix
	tokens   [][]TokenSet // [feature][row]
	excl     *ExclusionSet
}

// Size returns the number of entities.
func (c *Corpus) Size() int { return len(c.ids) }

// IDs returns all entity IDs in row order. Callers must not mutate it.
func (c *Corpus) IDs() []string { return c.ids }

// ID returns the entity ID for a row.
func (c *Corpus) ID(row int) string { return c.ids[row] }

// Row returns the row for an entity ID.
func (c *Corpus) Row(id string) (int, bool) {
	r, ok := c.rows[id]
	return r, ok
}

// Features returns the ordered feature names.
func (c *Corpus) Features() []string { return c.features }

// Matrix returns the embedding matrix for feature index f.
func (c *Corpus) Matrix(f int) *FeatureMatrix { return c.matrices[f] }

// Tokens returns the token set for feature index f and the given row.
func (c *Corpus) Tokens(f, row int) TokenSet { return c.tokens[f][row] }

// Exclusions returns the canonical exclusion pair set.
func (c *Corpus) Exclusions() *ExclusionSet { return c.excl }

// Excluded reports whether the unordered entity pair must never be similar.
func (c *Corpus) Excluded(a, b string) bool { return c.excl.Contains(a, b) }

// Load builds a Corpus from the three external sources.
//
// Entity IDs are the union across all features, sorted for determinism.
// Every feature matrix is reindexed to that row order and L2-normalized;
// missing or zero-norm vectors are marked invalid rather than failing the
// run. tokens and exclusions may be nil, which yields empty token sets and
// an empty exclusion graph.
func Load(ctx context.Context, embeddings EmbeddingSource, tokens TokenSource, exclusions ExclusionSource) (*Corpus, error) {
	if embeddings == nil {
		return nil, ErrNoEmbeddings
	}

	raw, err := embeddings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: load embeddings: %w", err)
	}

	features := make([]string, 0, len(raw))
	for name := range raw {
		features = append(features, name)
	}
	sort.Strings(features)

	// Union of entity IDs across features. Duplicate IDs within a feature
	// are degenerate input; the first occurrence wins.
	seen := make(map[string]struct{})
	var ids []string
	for _, name := range features {
		for _, id := range raw[name].IDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	rows := make(map[string]int, len(ids))
	for i, id := range ids {
		rows[id] = i
	}

	c := &Corpus{
		ids:      ids,
		rows:     rows,
		features: features,
		matrices: make([]*FeatureMatrix, len(features)),
		tokens:   make([][]TokenSet, len(features)),
	}

	totalValid := 0
	for fi, name := range features {
		m, err := reindex(name, raw[name], ids, rows)
		if err != nil {
			return nil, err
		}
		c.matrices[fi] = m
		totalValid += m.validCount
	}
	if totalValid == 0 {
		return nil, ErrNoEmbeddings
	}

	for fi, name := range features {
		sets := make([]TokenSet, len(ids))
		if tokens != nil {
			texts, err := tokens.Texts(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("corpus: load texts for %q: %w", name, err)
			}
			for id, text := range texts {
				if row, ok := rows[id]; ok {
					sets[row] = Tokenize(text)
				}
			}
		}
		c.tokens[fi] = sets
	}

	c.excl, err = loadExclusions(ctx, exclusions)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// reindex maps one feature's pipeline-ordered rows onto the corpus row order,
// normalizing as it goes.
func reindex(name string, fd FeatureData, ids []string, rows map[string]int) (*FeatureMatrix, error) {
	if fd.Dim <= 0 {
		return nil, fmt.Errorf("corpus: feature %q has invalid dimension %d", name, fd.Dim)
	}
	if len(fd.Vectors) < len(fd.IDs)*fd.Dim {
		return nil, fmt.Errorf("corpus: feature %q matrix is short: %d floats for %d rows of dim %d",
			name, len(fd.Vectors), len(fd.IDs), fd.Dim)
	}

	n := len(ids)
	m := &FeatureMatrix{
		Name:           name,
		Dim:            fd.Dim,
		Data:           make([]float32, n*fd.Dim),
		valid:          make([]bool, n),
		distinguishing: make([]bool, n),
		hashes:         make([]string, n),
	}

	placed := make(map[string]struct{}, len(fd.IDs))
	for srcRow, id := range fd.IDs {
		dstRow, ok := rows[id]
		if !ok {
			continue
		}
		if _, dup := placed[id]; dup {
			// Duplicate row for the same entity; keep the first.
			continue
		}
		placed[id] = struct{}{}

		dst := m.Data[dstRow*fd.Dim : (dstRow+1)*fd.Dim]
		copy(dst, fd.Vectors[srcRow*fd.Dim:(srcRow+1)*fd.Dim])
		if mat32.NormalizeL2InPlace(dst) {
			m.valid[dstRow] = true
			m.validCount++
		} else {
			// Zero-norm vector: invalid, scored 0, never fatal.
			clear(dst)
		}
	}

	for id, d := range fd.Distinguishing {
		if row, ok := rows[id]; ok {
			m.distinguishing[row] = d
		}
	}
	for id, h := range fd.Hashes {
		if row, ok := rows[id]; ok {
			m.hashes[row] = h
		}
	}

	return m, nil
}
