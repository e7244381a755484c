package corpus

import (
	"context"
	"fmt"
)

type pairKey struct {
	a, b string // a < b
}

// ExclusionSet holds canonical unordered entity pairs that must never be
// mutual neighbors (direct parent/child relationships).
type ExclusionSet struct {
	pairs map[pairKey]struct{}
}

// NewExclusionSet creates an empty exclusion set.
func NewExclusionSet() *ExclusionSet {
	return &ExclusionSet{pairs: make(map[pairKey]struct{})}
}

// Add records the unordered pair. Self-pairs are ignored.
func (s *ExclusionSet) Add(a, b string) {
	if a == b {
		return
	}
	s.pairs[canonical(a, b)] = struct{}{}
}

// Contains reports whether the unordered pair is excluded.
func (s *ExclusionSet) Contains(a, b string) bool {
	if a == b {
		return false
	}
	_, ok := s.pairs[canonical(a, b)]
	return ok
}

// Len returns the number of excluded pairs.
func (s *ExclusionSet) Len() int { return len(s.pairs) }

func canonical(a, b string) pairKey {
	if a < b {
		return pairKey{a: a, b: b}
	}
	return pairKey{a: b, b: a}
}

// loadExclusions reads and canonicalizes the parent/child pairs.
// Self-pairs and duplicates are filtered defensively, not treated as errors.
func loadExclusions(ctx context.Context, src ExclusionSource) (*ExclusionSet, error) {
	set := NewExclusionSet()
	if src == nil {
		return set, nil
	}

	pairs, err := src.Pairs(ctx)
	if err != nil {
		return nil, fmt.Errorf("corpus: load exclusions: %w", err)
	}
	for _, p := range pairs {
		set.Add(p[0], p[1])
	}
	return set, nil
}
