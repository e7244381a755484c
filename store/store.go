// Package store persists the similarity index as a bitemporal edge
// relation. Edges are superseded, never deleted: closing the old rows and
// inserting the new ones happens in one transaction so history stays
// queryable and a failed run leaves the prior index untouched.
package store

import (
	"context"
	"time"
)

// Edge is one similarity relationship. Consumers filter on TxTo == nil for
// the current neighbors of an entity.
type Edge struct {
	RefID     string
	SimilarID string
	// Rank is the 1-based position among RefID's current neighbors,
	// ordered by descending score.
	Rank  int
	Score float64
	// FeatureScores holds the per-feature contributions by feature name.
	FeatureScores map[string]float64
	TxFrom        time.Time
	TxTo          *time.Time
}

// Current reports whether the edge is part of the live index.
func (e Edge) Current() bool { return e.TxTo == nil }

// EdgeStore is the version store consumed by both engines.
//
// Both replace operations close superseded current rows (tx_to = now,
// matched by the predicate tx_to IS NULL) and bulk-insert replacements in
// one transaction. They are idempotent when retried against an unchanged
// prior state: closing an already-closed row is a no-op.
type EdgeStore interface {
	// LoadCurrent returns every current edge, ordered by ref ID then rank.
	LoadCurrent(ctx context.Context) ([]Edge, error)

	// ReplaceAll supersedes the entire current index with edges.
	ReplaceAll(ctx context.Context, edges []Edge, now time.Time) error

	// ReplaceSubset supersedes the current edges of exactly the given ref
	// IDs with edges. Entities not listed keep their rows untouched.
	ReplaceSubset(ctx context.Context, refIDs []string, edges []Edge, now time.Time) error

	Close() error
}
