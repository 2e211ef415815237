package model

import "time"

// ConnectionType tags the signal that produced an edge.
type ConnectionType string

const (
	TypeSemanticStrong   ConnectionType = "semantic_strong"
	TypeSemanticModerate ConnectionType = "semantic_moderate"
	TypeSemanticWeak     ConnectionType = "semantic_weak"
	TypeSameEvent        ConnectionType = "same_event"
	TypeSameRelation     ConnectionType = "same_relation"
	TypeSameLocation     ConnectionType = "same_location"
	TypeSharedRelative   ConnectionType = "shared_relative"
	TypeSameDay          ConnectionType = "same_day"
	TypeSameMonth        ConnectionType = "same_month"
	TypeSameYear         ConnectionType = "same_year"
	TypeOverlappingDates ConnectionType = "overlapping_dates"
	TypeNearbyDates      ConnectionType = "nearby_dates"
	TypeHybrid           ConnectionType = "hybrid_connection"
)

// IsSemantic reports whether the type is one of the similarity tiers driven
// by the adaptive thresholds.
func (t ConnectionType) IsSemantic() bool {
	switch t {
	case TypeSemanticStrong, TypeSemanticModerate, TypeSemanticWeak:
		return true
	}
	return false
}

// Connection is a directed, scored edge between two testimonies. Edges are
// written in mirrored pairs so each endpoint sees the connection outbound.
type Connection struct {
	UUID      string         `json:"uuid"`
	FromID    string         `json:"from_id"`
	ToID      string         `json:"to_id"`
	Type      ConnectionType `json:"type"`
	Score     float64        `json:"score"`
	Source    string         `json:"source"`
	Rating    *int           `json:"rating,omitempty"` // 1-5, set by end users
	CreatedAt time.Time      `json:"created_at"`
}

// PairKey returns the unordered pair key used for deduplication and for
// matching mirrored edges.
func (c *Connection) PairKey() string {
	return PairKey(c.FromID, c.ToID)
}

// PairKey builds the canonical unordered key for two testimony ids.
func PairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// EdgeTypeStats is one row of the grouped rating/score aggregate over the
// edge table, used for adaptive thresholds and quality reporting.
type EdgeTypeStats struct {
	Type        ConnectionType `json:"type"`
	EdgeCount   int            `json:"edge_count"`
	AvgScore    float64        `json:"avg_score"`
	AvgRating   float64        `json:"avg_rating"`
	RatingCount int            `json:"rating_count"`
}
