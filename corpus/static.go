package corpus

import "context"

// Static is an in-memory implementation of all three source interfaces.
// Useful for tests and for callers that already hold the run's data.
type Static struct {
	// Embeddings maps feature name to its raw embedding payload.
	Embeddings map[string]FeatureData
	// TextsByFeature maps feature name to entity ID to cleaned text.
	TextsByFeature map[string]map[string]string
	// ExclusionPairs lists direct parent/child entity pairs.
	ExclusionPairs [][2]string
}

var (
	_ EmbeddingSource = (*Static)(nil)
	_ TokenSource     = (*Static)(nil)
	_ ExclusionSource = (*Static)(nil)
)

// Load implements EmbeddingSource.
func (s *Static) Load(context.Context) (map[string]FeatureData, error) {
	return s.Embeddings, nil
}

// Texts implements TokenSource for one feature.
func (s *Static) Texts(_ context.Context, feature string) (map[string]string, error) {
	return s.TextsByFeature[feature], nil
}

// Pairs implements ExclusionSource.
func (s *Static) Pairs(context.Context) ([][2]string, error) {
	return s.ExclusionPairs, nil
}
