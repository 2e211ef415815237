package model

// Embedding section names. Each text field of a testimony is embedded
// independently and compared section-to-section.
const (
	SectionTitle         = "title"
	SectionDescription   = "description"
	SectionFullTestimony = "fullTestimony"
	SectionTranscript    = "transcript"
)

// EmbeddingRecord is one stored vector: a single section of a single
// testimony under a specific embedding model.
type EmbeddingRecord struct {
	TestimonyID string    `json:"testimony_id"`
	Section     string    `json:"section"`
	Model       string    `json:"model"`
	Vector      []float64 `json:"vector"`
}

// SectionVectors indexes a testimony's embedding rows by section name.
func SectionVectors(records []EmbeddingRecord) map[string][]float64 {
	out := make(map[string][]float64, len(records))
	for _, r := range records {
		if len(r.Vector) > 0 {
			out[r.Section] = r.Vector
		}
	}
	return out
}
