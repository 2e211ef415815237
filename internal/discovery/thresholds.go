package discovery

import (
	"github.com/archivelab/testimony/internal/config"
	"github.com/archivelab/testimony/internal/model"
)

// Thresholds carries the semantic tier cutoffs used to classify a cosine
// score into a connection type.
type Thresholds struct {
	Strong   float64
	Moderate float64
	Weak     float64
}

// DefaultThresholds returns the configured baseline with no rating feedback
// applied.
func DefaultThresholds(cfg config.DiscoveryConfig) Thresholds {
	return Thresholds{
		Strong:   cfg.StrongThreshold,
		Moderate: cfg.ModerateThreshold,
		Weak:     cfg.WeakThreshold,
	}
}

// AdaptiveThresholds nudges the semantic cutoffs based on how users have
// rated past semantic connections. Ratings are pooled across the three
// semantic tiers; with fewer than MinRatingSamples rated edges the defaults
// stand. A poor mean rating (below 3.0) raises every cutoff by one step so
// fewer, stronger edges are produced; a good mean (above 4.0) lowers them by
// one step. Each cutoff stays within MaxThresholdAdjust of its default.
func AdaptiveThresholds(cfg config.DiscoveryConfig, stats []model.EdgeTypeStats) Thresholds {
	t := DefaultThresholds(cfg)

	var ratingSum float64
	var ratingCount int
	for _, s := range stats {
		if !s.Type.IsSemantic() || s.RatingCount == 0 {
			continue
		}
		ratingSum += s.AvgRating * float64(s.RatingCount)
		ratingCount += s.RatingCount
	}

	if ratingCount < cfg.MinRatingSamples {
		return t
	}

	mean := ratingSum / float64(ratingCount)
	switch {
	case mean < 3.0:
		t.Strong += cfg.ThresholdStep
		t.Moderate += cfg.ThresholdStep
		t.Weak += cfg.ThresholdStep
	case mean > 4.0:
		t.Strong -= cfg.ThresholdStep
		t.Moderate -= cfg.ThresholdStep
		t.Weak -= cfg.ThresholdStep
	default:
		return t
	}

	t.Strong = clamp(t.Strong, cfg.StrongThreshold-cfg.MaxThresholdAdjust, cfg.StrongThreshold+cfg.MaxThresholdAdjust)
	t.Moderate = clamp(t.Moderate, cfg.ModerateThreshold-cfg.MaxThresholdAdjust, cfg.ModerateThreshold+cfg.MaxThresholdAdjust)
	t.Weak = clamp(t.Weak, cfg.WeakThreshold-cfg.MaxThresholdAdjust, cfg.WeakThreshold+cfg.MaxThresholdAdjust)
	return t
}

// Classify maps a similarity score to a semantic connection type, or ""
// when the score falls below the weak cutoff.
func (t Thresholds) Classify(score float64) model.ConnectionType {
	switch {
	case score >= t.Strong:
		return model.TypeSemanticStrong
	case score >= t.Moderate:
		return model.TypeSemanticModerate
	case score >= t.Weak:
		return model.TypeSemanticWeak
	default:
		return ""
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
