package embed

import (
	"context"
	"strings"
)

// Section is one named text field of a testimony to be embedded.
type Section struct {
	Name string
	Text string
}

// SectionEmbedder turns named text sections into vectors. Sections missing
// from the result map simply produced no usable vector; partial success is
// allowed. The caller owns retry policy.
type SectionEmbedder interface {
	EmbedSections(ctx context.Context, sections []Section) (map[string][]float64, error)
}

// filterBlank drops sections whose text is empty or whitespace before any
// remote call is made.
func filterBlank(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.Text) != "" {
			out = append(out, s)
		}
	}
	return out
}
