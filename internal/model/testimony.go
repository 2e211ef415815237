package model

import "time"

// SubmissionKind describes how a testimony was submitted.
type SubmissionKind string

const (
	KindWritten SubmissionKind = "written"
	KindAudio   SubmissionKind = "audio"
	KindVideo   SubmissionKind = "video"
)

// ReviewStatus is the moderation lifecycle state of a testimony.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// PipelineStatus tracks one AI processing step (transcription or embedding).
type PipelineStatus string

const (
	StatusNone       PipelineStatus = "none"
	StatusPending    PipelineStatus = "pending"
	StatusProcessing PipelineStatus = "processing"
	StatusCompleted  PipelineStatus = "completed"
	StatusFailed     PipelineStatus = "failed"
)

// EventLink associates a testimony with an event, with a confidence score.
type EventLink struct {
	EventID    string  `json:"event_id"`
	Confidence float64 `json:"confidence"`
}

// LocationLink associates a testimony with a location, with a confidence score.
type LocationLink struct {
	LocationID string  `json:"location_id"`
	Confidence float64 `json:"confidence"`
}

// NamedRelative is a person named in a testimony together with the
// testifier's relationship to them.
type NamedRelative struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
}

type Testimony struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	FullTestimony string         `json:"full_testimony"`
	Transcript    string         `json:"transcript"`
	Summary       string         `json:"summary"`
	KeyPhrases    []string       `json:"key_phrases"`
	Kind          SubmissionKind `json:"submission_kind"`

	MediaURL         string   `json:"media_url"`
	MediaDurationSec *float64 `json:"media_duration_sec,omitempty"`
	MediaContentHash string   `json:"media_content_hash"`

	Status      ReviewStatus `json:"status"`
	IsPublished bool         `json:"is_published"`

	TranscriptionStatus   PipelineStatus `json:"transcription_status"`
	TranscriptionError    string         `json:"transcription_error,omitempty"`
	TranscriptionAttempts int            `json:"transcription_attempts"`
	EmbeddingStatus       PipelineStatus `json:"embedding_status"`
	EmbeddingError        string         `json:"embedding_error,omitempty"`

	// RelationToEvent is the testifier's own relation to the events they
	// describe (survivor, witness, descendant, ...).
	RelationToEvent string          `json:"relation_to_event,omitempty"`
	Events          []EventLink     `json:"events,omitempty"`
	Locations       []LocationLink  `json:"locations,omitempty"`
	Relatives       []NamedRelative `json:"relatives,omitempty"`

	EventDateFrom *time.Time `json:"event_date_from,omitempty"`
	EventDateTo   *time.Time `json:"event_date_to,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasMedia reports whether the testimony carries transcribable media.
func (t *Testimony) HasMedia() bool {
	return t.Kind == KindAudio || t.Kind == KindVideo
}

// EffectiveDateEnd returns the end of the event date range, falling back to
// the start for point-in-time testimonies. Nil when no date is set.
func (t *Testimony) EffectiveDateEnd() *time.Time {
	if t.EventDateTo != nil {
		return t.EventDateTo
	}
	return t.EventDateFrom
}
