package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	var opts SearchOptions
	opts.Normalize()

	assert.Equal(t, DefaultLimit, opts.Limit)
	assert.InDelta(t, DefaultSemanticWeight, opts.SemanticWeight, 1e-9)
	assert.InDelta(t, DefaultKeywordWeight, opts.KeywordWeight, 1e-9)
}

func TestNormalize_WeightsSumToOne(t *testing.T) {
	opts := SearchOptions{SemanticWeight: 2, KeywordWeight: 3}
	opts.Normalize()

	assert.InDelta(t, 0.4, opts.SemanticWeight, 1e-9)
	assert.InDelta(t, 0.6, opts.KeywordWeight, 1e-9)
}

func TestNormalize_NegativeWeightClamps(t *testing.T) {
	// A negative weight from the wire must not poison normalization: the
	// pair {-0.3, 0.3} once summed to ~0 and normalized to ±Inf, turning
	// every fused score into NaN.
	opts := SearchOptions{SemanticWeight: -0.3, KeywordWeight: 0.3}
	opts.Normalize()

	assert.Equal(t, 0.0, opts.SemanticWeight)
	assert.Equal(t, 1.0, opts.KeywordWeight)
}

func TestNormalize_BothNegativeFallsBackToDefaults(t *testing.T) {
	opts := SearchOptions{SemanticWeight: -1, KeywordWeight: -2}
	opts.Normalize()

	assert.InDelta(t, DefaultSemanticWeight, opts.SemanticWeight, 1e-9)
	assert.InDelta(t, DefaultKeywordWeight, opts.KeywordWeight, 1e-9)
}
