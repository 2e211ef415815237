package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/archivelab/testimony/internal/model"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float64{1, 2, 3}, []float64{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
}

func TestCosineSimilarityDegenerateInput(t *testing.T) {
	// Zero-norm and mismatched-length vectors must never divide by zero.
	assert.Equal(t, 0.0, CosineSimilarity([]float64{0, 0}, []float64{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float64{1, 1}, []float64{1, 1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestMultiVectorSimilarityWeighting(t *testing.T) {
	// Two shared sections with different per-section similarities: the
	// result is the weight-renormalized blend.
	a := map[string][]float64{
		model.SectionFullTestimony: {1, 0},
		model.SectionTitle:         {1, 0},
	}
	b := map[string][]float64{
		model.SectionFullTestimony: {1, 0}, // similarity 1.0, weight 0.4
		model.SectionTitle:         {0, 1}, // similarity 0.0, weight 0.05
	}

	expected := (0.4*1.0 + 0.05*0.0) / 0.45
	assert.InDelta(t, expected, MultiVectorSimilarity(a, b), 1e-9)
}

func TestMultiVectorSimilaritySingleSharedSection(t *testing.T) {
	// With one shared section the renormalization collapses to that
	// section's plain cosine similarity, whatever its weight.
	a := map[string][]float64{
		model.SectionTitle:      {3, 4},
		model.SectionTranscript: {1, 1},
	}
	b := map[string][]float64{
		model.SectionTitle: {3, 4},
	}

	assert.InDelta(t, 1.0, MultiVectorSimilarity(a, b), 1e-9)
}

func TestMultiVectorSimilarityNoSharedSections(t *testing.T) {
	a := map[string][]float64{model.SectionTitle: {1, 0}}
	b := map[string][]float64{model.SectionTranscript: {1, 0}}
	assert.Equal(t, 0.0, MultiVectorSimilarity(a, b))
}

func TestKeyPhraseOverlap(t *testing.T) {
	ratio, enabled := KeyPhraseOverlap(
		[]string{"village", "soldier", "winter"},
		[]string{"village", "soldier", "train", "border", "letter"},
	)
	assert.True(t, enabled)
	// Intersection 2 over the smaller set of 3.
	assert.InDelta(t, 2.0/3.0, ratio, 1e-9)
}

func TestKeyPhraseOverlapDisabledWhenEmpty(t *testing.T) {
	_, enabled := KeyPhraseOverlap(nil, []string{"village"})
	assert.False(t, enabled)

	_, enabled = KeyPhraseOverlap([]string{"village"}, nil)
	assert.False(t, enabled)
}

func TestKeyPhraseOverlapIgnoresDuplicates(t *testing.T) {
	ratio, enabled := KeyPhraseOverlap(
		[]string{"village", "village"},
		[]string{"village", "soldier", "soldier"},
	)
	assert.True(t, enabled)
	assert.InDelta(t, 1.0, ratio, 1e-9)
}
