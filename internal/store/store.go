package store

import (
	"context"

	"github.com/archivelab/testimony/internal/model"
)

// TestimonyStore is the narrow surface of the data store consumed by the
// processing pipeline and the discovery engine.
type TestimonyStore interface {
	Get(ctx context.Context, id string) (*model.Testimony, error)
	Save(ctx context.Context, t *model.Testimony) error
	// ListCandidates returns every other approved, published testimony.
	ListCandidates(ctx context.Context, excludeID string) ([]*model.Testimony, error)
	// ListNeedingProcessing returns ids of testimonies with an unfinished
	// transcription or embedding step, up to limit.
	ListNeedingProcessing(ctx context.Context, limit int) ([]string, error)
	// ResetFailedTranscriptions flips failed transcription rows below the
	// attempt ceiling back to pending and returns their ids.
	ResetFailedTranscriptions(ctx context.Context, maxAttempts int) ([]string, error)
	UpdateTranscription(ctx context.Context, id string, status model.PipelineStatus, transcript, errMsg string, attempts int, contentHash string) error
	UpdateEmbeddingStatus(ctx context.Context, id string, status model.PipelineStatus, errMsg string) error
	UpdateDerived(ctx context.Context, id, summary string, keyPhrases []string) error
}

// EmbeddingStore reads and replaces a testimony's embedding rows. Replace is
// a transactional delete-then-insert for the given model.
type EmbeddingStore interface {
	GetByTestimony(ctx context.Context, id string) ([]model.EmbeddingRecord, error)
	Replace(ctx context.Context, testimonyID, modelName string, vectors map[string][]float64) error
}

// ConnectionStore maintains the bidirectional edge graph. Single-direction
// writes are atomic and last-writer-wins; Upsert is idempotent under
// concurrent discovery runs.
type ConnectionStore interface {
	ListTouching(ctx context.Context, id string) ([]model.Connection, error)
	ListFrom(ctx context.Context, id string) ([]model.Connection, error)
	DeleteUnratedTouching(ctx context.Context, id string) error
	Upsert(ctx context.Context, c model.Connection) error
	// UpdatePair refreshes type/score/source on an existing directed edge,
	// preserving its rating and identity.
	UpdatePair(ctx context.Context, fromID, toID string, typ model.ConnectionType, score float64, source string) error
	Rate(ctx context.Context, fromID, toID string, rating int) error
	// TypeStats is the grouped aggregate (edge type -> avg score, avg
	// rating, rating count) behind adaptive thresholds and quality reports.
	TypeStats(ctx context.Context) ([]model.EdgeTypeStats, error)
}
