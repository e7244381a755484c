package engine

import (
	"sort"

	"github.com/grckit/simidx/store"
)

// Neighbor is one entry in an entity's maintained top-K list.
type Neighbor struct {
	ID            string
	Score         float64
	FeatureScores map[string]float64
}

// WorkingIndex is the run's mutable view of the similarity index: per
// entity, its current top-K neighbors and derived kth-score.
//
// It is owned by a single logical writer for the duration of a run. Every
// mutation re-sorts and truncates through one code path, so the bounded-K /
// descending-order invariant cannot be violated by callers.
type WorkingIndex struct {
	k   int
	top map[string][]Neighbor
}

// NewWorkingIndex creates an empty index maintaining at most k neighbors
// per entity.
func NewWorkingIndex(k int) *WorkingIndex {
	return &WorkingIndex{
		k:   k,
		top: make(map[string][]Neighbor),
	}
}

// FromEdges builds a WorkingIndex from the store's current edge set.
func FromEdges(k int, edges []store.Edge) *WorkingIndex {
	w := NewWorkingIndex(k)
	for _, e := range edges {
		w.top[e.RefID] = append(w.top[e.RefID], Neighbor{
			ID:            e.SimilarID,
			Score:         e.Score,
			FeatureScores: e.FeatureScores,
		})
	}
	for ref, ns := range w.top {
		w.top[ref] = w.trim(ns)
	}
	return w
}

// Replace substitutes the entity's entire neighbor list. The list is
// sorted by descending score and truncated to K.
func (w *WorkingIndex) Replace(ref string, ns []Neighbor) {
	trimmed := w.trim(append([]Neighbor(nil), ns...))
	if len(trimmed) == 0 {
		delete(w.top, ref)
		return
	}
	w.top[ref] = trimmed
}

// Offer inserts or updates a single neighbor candidate, keeping the top-K
// invariant. Returns true if the entity's neighbor list changed.
func (w *WorkingIndex) Offer(ref string, n Neighbor) bool {
	old := w.top[ref]

	ns := make([]Neighbor, 0, len(old)+1)
	for _, existing := range old {
		if existing.ID != n.ID {
			ns = append(ns, existing)
		}
	}
	ns = w.trim(append(ns, n))

	if neighborsEqual(old, ns) {
		return false
	}
	w.top[ref] = ns
	return true
}

// Neighbors returns the entity's current list, strongest first.
// Callers must not mutate the returned slice.
func (w *WorkingIndex) Neighbors(ref string) []Neighbor {
	return w.top[ref]
}

// KthScore returns the score of the entity's weakest kept neighbor, or 0
// when it has fewer than K neighbors. A candidate must beat this value to
// displace anything.
func (w *WorkingIndex) KthScore(ref string) float64 {
	ns := w.top[ref]
	if len(ns) < w.k {
		return 0
	}
	return ns[len(ns)-1].Score
}

// Edges materializes the given entities' neighbor lists as store edges
// with dense 1-based ranks.
func (w *WorkingIndex) Edges(refs []string) []store.Edge {
	var edges []store.Edge
	for _, ref := range refs {
		for i, n := range w.top[ref] {
			edges = append(edges, store.Edge{
				RefID:         ref,
				SimilarID:     n.ID,
				Rank:          i + 1,
				Score:         n.Score,
				FeatureScores: n.FeatureScores,
			})
		}
	}
	return edges
}

func (w *WorkingIndex) trim(ns []Neighbor) []Neighbor {
	sortNeighbors(ns)
	if len(ns) > w.k {
		ns = ns[:w.k]
	}
	return ns
}

// sortNeighbors orders by descending score. Ties break on ID so reruns
// produce identical edge sets.
func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Score != ns[j].Score {
			return ns[i].Score > ns[j].Score
		}
		return ns[i].ID < ns[j].ID
	})
}

func neighborsEqual(a, b []Neighbor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Score != b[i].Score {
			return false
		}
	}
	return true
}
