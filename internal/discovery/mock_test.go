package discovery

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/model"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type MockTestimonyStore struct {
	Testimonies map[string]*model.Testimony
	Candidates  []*model.Testimony
	Err         error
}

func (m *MockTestimonyStore) Get(ctx context.Context, id string) (*model.Testimony, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Testimonies[id], nil
}

func (m *MockTestimonyStore) Save(ctx context.Context, t *model.Testimony) error { return m.Err }

func (m *MockTestimonyStore) ListCandidates(ctx context.Context, excludeID string) ([]*model.Testimony, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var out []*model.Testimony
	for _, t := range m.Candidates {
		if t.ID != excludeID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTestimonyStore) ListNeedingProcessing(ctx context.Context, limit int) ([]string, error) {
	return nil, m.Err
}

func (m *MockTestimonyStore) ResetFailedTranscriptions(ctx context.Context, maxAttempts int) ([]string, error) {
	return nil, m.Err
}

func (m *MockTestimonyStore) UpdateTranscription(ctx context.Context, id string, status model.PipelineStatus, transcript, errMsg string, attempts int, contentHash string) error {
	return m.Err
}

func (m *MockTestimonyStore) UpdateEmbeddingStatus(ctx context.Context, id string, status model.PipelineStatus, errMsg string) error {
	return m.Err
}

func (m *MockTestimonyStore) UpdateDerived(ctx context.Context, id, summary string, keyPhrases []string) error {
	return m.Err
}

type MockEmbeddingStore struct {
	Records map[string][]model.EmbeddingRecord
	Err     error
}

func (m *MockEmbeddingStore) GetByTestimony(ctx context.Context, id string) ([]model.EmbeddingRecord, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Records[id], nil
}

func (m *MockEmbeddingStore) Replace(ctx context.Context, testimonyID, modelName string, vectors map[string][]float64) error {
	return m.Err
}

type pairUpdate struct {
	FromID string
	ToID   string
	Type   model.ConnectionType
	Score  float64
	Source string
}

type MockConnectionStore struct {
	Existing []model.Connection
	Stats    []model.EdgeTypeStats

	Upserted   []model.Connection
	Updated    []pairUpdate
	DeletedFor []string
	RatedPairs []pairUpdate
	Err        error
}

func (m *MockConnectionStore) ListTouching(ctx context.Context, id string) ([]model.Connection, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Existing, nil
}

func (m *MockConnectionStore) ListFrom(ctx context.Context, id string) ([]model.Connection, error) {
	return m.Existing, m.Err
}

func (m *MockConnectionStore) DeleteUnratedTouching(ctx context.Context, id string) error {
	m.DeletedFor = append(m.DeletedFor, id)
	return m.Err
}

func (m *MockConnectionStore) Upsert(ctx context.Context, c model.Connection) error {
	if m.Err != nil {
		return m.Err
	}
	m.Upserted = append(m.Upserted, c)
	return nil
}

func (m *MockConnectionStore) UpdatePair(ctx context.Context, fromID, toID string, typ model.ConnectionType, score float64, source string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Updated = append(m.Updated, pairUpdate{FromID: fromID, ToID: toID, Type: typ, Score: score, Source: source})
	return nil
}

func (m *MockConnectionStore) Rate(ctx context.Context, fromID, toID string, rating int) error {
	m.RatedPairs = append(m.RatedPairs, pairUpdate{FromID: fromID, ToID: toID})
	return m.Err
}

func (m *MockConnectionStore) TypeStats(ctx context.Context) ([]model.EdgeTypeStats, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Stats, nil
}
