package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/ai/embed"
	"github.com/archivelab/testimony/internal/model"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

type transcriptionUpdate struct {
	Status      model.PipelineStatus
	Transcript  string
	ErrMsg      string
	Attempts    int
	ContentHash string
}

type embeddingUpdate struct {
	Status model.PipelineStatus
	ErrMsg string
}

type MockTestimonyStore struct {
	Testimonies map[string]*model.Testimony
	PendingIDs  []string
	ResetIDs    []string

	TranscriptionUpdates []transcriptionUpdate
	EmbeddingUpdates     []embeddingUpdate
	DerivedSummary       string
	DerivedKeyPhrases    []string
	Err                  error
}

func (m *MockTestimonyStore) Get(ctx context.Context, id string) (*model.Testimony, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Testimonies[id], nil
}

func (m *MockTestimonyStore) Save(ctx context.Context, t *model.Testimony) error { return m.Err }

func (m *MockTestimonyStore) ListCandidates(ctx context.Context, excludeID string) ([]*model.Testimony, error) {
	return nil, m.Err
}

func (m *MockTestimonyStore) ListNeedingProcessing(ctx context.Context, limit int) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.PendingIDs) > limit {
		return m.PendingIDs[:limit], nil
	}
	return m.PendingIDs, nil
}

func (m *MockTestimonyStore) ResetFailedTranscriptions(ctx context.Context, maxAttempts int) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ResetIDs, nil
}

func (m *MockTestimonyStore) UpdateTranscription(ctx context.Context, id string, status model.PipelineStatus, transcript, errMsg string, attempts int, contentHash string) error {
	m.TranscriptionUpdates = append(m.TranscriptionUpdates, transcriptionUpdate{
		Status: status, Transcript: transcript, ErrMsg: errMsg, Attempts: attempts, ContentHash: contentHash,
	})
	return m.Err
}

func (m *MockTestimonyStore) UpdateEmbeddingStatus(ctx context.Context, id string, status model.PipelineStatus, errMsg string) error {
	m.EmbeddingUpdates = append(m.EmbeddingUpdates, embeddingUpdate{Status: status, ErrMsg: errMsg})
	return m.Err
}

func (m *MockTestimonyStore) UpdateDerived(ctx context.Context, id, summary string, keyPhrases []string) error {
	m.DerivedSummary = summary
	m.DerivedKeyPhrases = keyPhrases
	return m.Err
}

type MockEmbeddingStore struct {
	Replaced map[string][]float64
	Err      error
}

func (m *MockEmbeddingStore) GetByTestimony(ctx context.Context, id string) ([]model.EmbeddingRecord, error) {
	return nil, m.Err
}

func (m *MockEmbeddingStore) Replace(ctx context.Context, testimonyID, modelName string, vectors map[string][]float64) error {
	if m.Err != nil {
		return m.Err
	}
	m.Replaced = vectors
	return nil
}

// MockTranscriber pops one queued result per call.
type MockTranscriber struct {
	Results []mockResult
	Calls   int
}

type mockResult struct {
	Text string
	Err  error
}

func (m *MockTranscriber) Transcribe(ctx context.Context, mediaURL string, durationSec *float64) (string, error) {
	m.Calls++
	if len(m.Results) == 0 {
		return "", nil
	}
	r := m.Results[0]
	m.Results = m.Results[1:]
	return r.Text, r.Err
}

type MockEmbedder struct {
	Vectors map[string][]float64
	Err     error
}

func (m *MockEmbedder) EmbedSections(ctx context.Context, sections []embed.Section) (map[string][]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Vectors, nil
}

type MockDiscoverer struct {
	Called chan string
}

func (m *MockDiscoverer) Discover(ctx context.Context, id string) (int, error) {
	if m.Called != nil {
		m.Called <- id
	}
	return 0, nil
}
