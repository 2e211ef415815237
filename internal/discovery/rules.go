package discovery

import (
	"math"
	"strings"
	"time"

	"github.com/archivelab/testimony/internal/model"
)

// RuleMatch is one deterministic signal between two testimonies.
type RuleMatch struct {
	Type  model.ConnectionType
	Score float64
}

// RuleMatches runs every deterministic matcher between two testimonies.
// The date matchers are mutually exclusive; the others are independent.
func RuleMatches(a, b *model.Testimony) []RuleMatch {
	var out []RuleMatch

	if m, ok := matchSameEvent(a, b); ok {
		out = append(out, m)
	}
	if m, ok := matchSameRelation(a, b); ok {
		out = append(out, m)
	}
	if m, ok := matchSameLocation(a, b); ok {
		out = append(out, m)
	}
	if m, ok := matchSharedRelative(a, b); ok {
		out = append(out, m)
	}
	if m, ok := matchDates(a, b); ok {
		out = append(out, m)
	}

	return out
}

// BestRuleScore returns the strongest rule signal, or 0 when none fired.
func BestRuleScore(matches []RuleMatch) (RuleMatch, bool) {
	var best RuleMatch
	found := false
	for _, m := range matches {
		if !found || m.Score > best.Score {
			best = m
			found = true
		}
	}
	return best, found
}

// matchSameEvent fires on the first event id both testimonies link to,
// scaled by the higher of the two link confidences.
func matchSameEvent(a, b *model.Testimony) (RuleMatch, bool) {
	for _, ea := range a.Events {
		for _, eb := range b.Events {
			if ea.EventID == "" || ea.EventID != eb.EventID {
				continue
			}
			conf := math.Max(ea.Confidence, eb.Confidence)
			return RuleMatch{Type: model.TypeSameEvent, Score: 0.9 * conf}, true
		}
	}
	return RuleMatch{}, false
}

func matchSameRelation(a, b *model.Testimony) (RuleMatch, bool) {
	ra := normalizeText(a.RelationToEvent)
	rb := normalizeText(b.RelationToEvent)
	if ra == "" || ra != rb {
		return RuleMatch{}, false
	}
	return RuleMatch{Type: model.TypeSameRelation, Score: 0.75}, true
}

func matchSameLocation(a, b *model.Testimony) (RuleMatch, bool) {
	for _, la := range a.Locations {
		for _, lb := range b.Locations {
			if la.LocationID == "" || la.LocationID != lb.LocationID {
				continue
			}
			conf := math.Max(la.Confidence, lb.Confidence)
			return RuleMatch{Type: model.TypeSameLocation, Score: 0.8 * conf}, true
		}
	}
	return RuleMatch{}, false
}

// matchSharedRelative prefers a name+relationship match (0.9) over a
// name-only match (0.85).
func matchSharedRelative(a, b *model.Testimony) (RuleMatch, bool) {
	best := 0.0
	for _, ra := range a.Relatives {
		nameA := normalizeText(ra.Name)
		if nameA == "" {
			continue
		}
		for _, rb := range b.Relatives {
			if nameA != normalizeText(rb.Name) {
				continue
			}
			if normalizeText(ra.Relationship) != "" &&
				normalizeText(ra.Relationship) == normalizeText(rb.Relationship) {
				best = math.Max(best, 0.9)
			} else {
				best = math.Max(best, 0.85)
			}
		}
	}
	if best == 0 {
		return RuleMatch{}, false
	}
	return RuleMatch{Type: model.TypeSharedRelative, Score: best}, true
}

// matchDates walks the temporal matchers in strict priority order and stops
// at the first that fires. Testimonies without a start date never match.
func matchDates(a, b *model.Testimony) (RuleMatch, bool) {
	if a.EventDateFrom == nil || b.EventDateFrom == nil {
		return RuleMatch{}, false
	}

	startA, startB := *a.EventDateFrom, *b.EventDateFrom
	endA, endB := *a.EffectiveDateEnd(), *b.EffectiveDateEnd()

	if withinDays(startA, startB, 1) && withinDays(endA, endB, 1) {
		return RuleMatch{Type: model.TypeSameDay, Score: 0.95}, true
	}

	if startA.Year() == startB.Year() && startA.Month() == startB.Month() {
		return RuleMatch{Type: model.TypeSameMonth, Score: 0.8}, true
	}

	if startA.Year() == startB.Year() {
		return RuleMatch{Type: model.TypeSameYear, Score: 0.7}, true
	}

	if a.EventDateTo != nil && b.EventDateTo != nil {
		if ratio, ok := overlapRatio(startA, endA, startB, endB); ok {
			score := math.Min(0.75, 0.6+ratio*0.15)
			return RuleMatch{Type: model.TypeOverlappingDates, Score: score}, true
		}
	}

	days := intervalGapDays(startA, endA, startB, endB)
	if days <= 30 {
		score := math.Max(0.5, 0.7-float64(days)/100)
		return RuleMatch{Type: model.TypeNearbyDates, Score: score}, true
	}

	return RuleMatch{}, false
}

// intervalGapDays measures the distance between the nearest edges of two
// date ranges, 0 when they touch or overlap.
func intervalGapDays(startA, endA, startB, endB time.Time) int {
	latestStart := startA
	if startB.After(latestStart) {
		latestStart = startB
	}
	earliestEnd := endA
	if endB.Before(earliestEnd) {
		earliestEnd = endB
	}
	if !latestStart.After(earliestEnd) {
		return 0
	}
	return int(latestStart.Sub(earliestEnd).Hours() / 24)
}

// overlapRatio returns intersection length over the shorter range's length.
// A zero-length shorter range counts as full overlap when it intersects.
func overlapRatio(startA, endA, startB, endB time.Time) (float64, bool) {
	lo := startA
	if startB.After(lo) {
		lo = startB
	}
	hi := endA
	if endB.Before(hi) {
		hi = endB
	}
	if hi.Before(lo) {
		return 0, false
	}

	shorter := endA.Sub(startA)
	if other := endB.Sub(startB); other < shorter {
		shorter = other
	}
	if shorter <= 0 {
		return 1, true
	}
	return float64(hi.Sub(lo)) / float64(shorter), true
}

func withinDays(a, b time.Time, days int) bool {
	return daysBetween(a, b) <= days
}

func daysBetween(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

// normalizeText lowercases and collapses whitespace so "Eye Witness " and
// "eye witness" compare equal.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
