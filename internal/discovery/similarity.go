package discovery

import (
	"math"

	"github.com/archivelab/testimony/internal/model"
)

// sectionWeights fixes how much each embedding section contributes to a
// multi-vector comparison. Only sections present on both sides contribute;
// the weights are renormalized over that subset.
var sectionWeights = map[string]float64{
	model.SectionFullTestimony: 0.4,
	model.SectionTranscript:    0.4,
	model.SectionDescription:   0.15,
	model.SectionTitle:         0.05,
}

// CosineSimilarity is symmetric and bounded in [-1, 1]. Zero-norm or
// mismatched-length input yields 0 rather than dividing by zero.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MultiVectorSimilarity combines per-section cosine similarities into one
// weighted score. With a single shared section the renormalization collapses
// to that section's plain cosine similarity. No shared sections yields 0.
func MultiVectorSimilarity(a, b map[string][]float64) float64 {
	var weighted, totalWeight float64

	for section, weight := range sectionWeights {
		va, okA := a[section]
		vb, okB := b[section]
		if !okA || !okB {
			continue
		}
		weighted += weight * CosineSimilarity(va, vb)
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// KeyPhraseOverlap computes intersection size over the smaller set's size.
// The second return is false when either side has no key phrases, which
// disables the pre-filter (treated as "don't skip").
func KeyPhraseOverlap(a, b []string) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}

	setA := make(map[string]struct{}, len(a))
	for _, p := range a {
		setA[p] = struct{}{}
	}

	setB := make(map[string]struct{}, len(b))
	intersection := 0
	for _, p := range b {
		if _, dup := setB[p]; dup {
			continue
		}
		setB[p] = struct{}{}
		if _, ok := setA[p]; ok {
			intersection++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	if smaller == 0 {
		return 0, false
	}

	return float64(intersection) / float64(smaller), true
}
