package discovery

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/archivelab/testimony/internal/model"
	"github.com/archivelab/testimony/internal/notify"
)

type recordingNotifier struct {
	mu  sync.Mutex
	got []notify.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

// vectorWithCosine builds a unit vector whose cosine similarity against
// (1, 0) is exactly sim.
func vectorWithCosine(sim float64) []float64 {
	return []float64{sim, math.Sqrt(1 - sim*sim)}
}

func TestDiscoverHybridFusion(t *testing.T) {
	// Subject and candidate share a relative by name and relationship
	// (rule score 0.9) and their sole embedded section has cosine
	// similarity 0.92. Both signals are strong, so the hybrid blend gets
	// the corroboration boost: (0.92*0.6 + 0.9*0.4) * 1.05 = 0.9576.
	subject := &model.Testimony{
		ID: "t-1", OwnerID: "u-1",
		Relatives: []model.NamedRelative{{Name: "Miriam Stein", Relationship: "mother"}},
	}
	candidate := &model.Testimony{
		ID: "t-2", OwnerID: "u-2",
		Relatives: []model.NamedRelative{{Name: "miriam stein", Relationship: "mother"}},
	}

	testimonies := &MockTestimonyStore{
		Testimonies: map[string]*model.Testimony{"t-1": subject},
		Candidates:  []*model.Testimony{candidate},
	}
	embeddings := &MockEmbeddingStore{Records: map[string][]model.EmbeddingRecord{
		"t-1": {{TestimonyID: "t-1", Section: model.SectionFullTestimony, Vector: []float64{1, 0}}},
		"t-2": {{TestimonyID: "t-2", Section: model.SectionFullTestimony, Vector: vectorWithCosine(0.92)}},
	}}
	connections := &MockConnectionStore{}
	sink := &recordingNotifier{}
	dispatcher := notify.NewDispatcher(sink, nil, testLog())

	engine := NewEngine(testimonies, embeddings, connections, dispatcher, discoveryConfig(), testLog())

	n, err := engine.Discover(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, connections.Upserted, 2)
	forward, reverse := connections.Upserted[0], connections.Upserted[1]
	assert.Equal(t, model.TypeHybrid, forward.Type)
	assert.InDelta(t, 0.9576, forward.Score, 1e-9)
	assert.Equal(t, forward.Score, reverse.Score)
	assert.Equal(t, forward.FromID, reverse.ToID)
	assert.Equal(t, forward.ToID, reverse.FromID)
	assert.NotEqual(t, forward.UUID, reverse.UUID)

	// Both owners plus the moderator queue hear about a >= 0.80 edge.
	assert.Eventually(t, func() bool { return sink.count() == 3 }, time.Second, 10*time.Millisecond)
}

func TestDiscoverPreservesRatedEdges(t *testing.T) {
	rating := 4
	subject := &model.Testimony{ID: "t-1", RelationToEvent: "survivor"}
	candidate := &model.Testimony{ID: "t-2", RelationToEvent: "survivor"}

	testimonies := &MockTestimonyStore{
		Testimonies: map[string]*model.Testimony{"t-1": subject},
		Candidates:  []*model.Testimony{candidate},
	}
	connections := &MockConnectionStore{
		Existing: []model.Connection{
			{UUID: "c-1", FromID: "t-1", ToID: "t-2", Type: model.TypeSameRelation, Rating: &rating},
		},
	}
	dispatcher := notify.NewDispatcher(nil, nil, testLog())

	engine := NewEngine(testimonies, &MockEmbeddingStore{}, connections, dispatcher, discoveryConfig(), testLog())

	_, err := engine.Discover(context.Background(), "t-1")
	require.NoError(t, err)

	// Unrated edges for the subject are cleared before recomputation.
	assert.Equal(t, []string{"t-1"}, connections.DeletedFor)

	// The rated pair is refreshed in place, both directions, never
	// re-inserted as a new edge.
	assert.Empty(t, connections.Upserted)
	require.Len(t, connections.Updated, 2)
	assert.Equal(t, "t-1", connections.Updated[0].FromID)
	assert.Equal(t, "t-2", connections.Updated[0].ToID)
	assert.Equal(t, "t-2", connections.Updated[1].FromID)
	assert.Equal(t, model.TypeSameRelation, connections.Updated[0].Type)
	assert.Equal(t, 0.75, connections.Updated[0].Score)
}

func TestDiscoverRuleOnlyEdgeBelowNotifyFloor(t *testing.T) {
	subject := &model.Testimony{ID: "t-1", OwnerID: "u-1", RelationToEvent: "witness"}
	candidate := &model.Testimony{ID: "t-2", OwnerID: "u-2", RelationToEvent: "witness"}

	testimonies := &MockTestimonyStore{
		Testimonies: map[string]*model.Testimony{"t-1": subject},
		Candidates:  []*model.Testimony{candidate},
	}
	connections := &MockConnectionStore{}
	sink := &recordingNotifier{}
	dispatcher := notify.NewDispatcher(sink, nil, testLog())

	engine := NewEngine(testimonies, &MockEmbeddingStore{}, connections, dispatcher, discoveryConfig(), testLog())

	n, err := engine.Discover(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, connections.Upserted, 2)
	assert.Equal(t, model.TypeSameRelation, connections.Upserted[0].Type)
	assert.Equal(t, 0.75, connections.Upserted[0].Score)

	// 0.75 is below the notification floor: nobody is pinged.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, sink.count())
}

func TestDiscoverKeepsOnlyTopSemanticEdges(t *testing.T) {
	cfg := discoveryConfig()
	cfg.TopSemanticEdges = 1

	subject := &model.Testimony{ID: "t-1"}
	close1 := &model.Testimony{ID: "t-2"}
	close2 := &model.Testimony{ID: "t-3"}

	testimonies := &MockTestimonyStore{
		Testimonies: map[string]*model.Testimony{"t-1": subject},
		Candidates:  []*model.Testimony{close1, close2},
	}
	embeddings := &MockEmbeddingStore{Records: map[string][]model.EmbeddingRecord{
		"t-1": {{Section: model.SectionFullTestimony, Vector: []float64{1, 0}}},
		"t-2": {{Section: model.SectionFullTestimony, Vector: vectorWithCosine(0.92)}},
		"t-3": {{Section: model.SectionFullTestimony, Vector: vectorWithCosine(0.80)}},
	}}
	connections := &MockConnectionStore{}
	dispatcher := notify.NewDispatcher(nil, nil, testLog())

	engine := NewEngine(testimonies, embeddings, connections, dispatcher, cfg, testLog())

	n, err := engine.Discover(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, connections.Upserted, 2)
	assert.Equal(t, "t-2", connections.Upserted[0].ToID)
	assert.Equal(t, model.TypeSemanticStrong, connections.Upserted[0].Type)
}

func TestDiscoverNoCandidates(t *testing.T) {
	subject := &model.Testimony{ID: "t-1"}
	testimonies := &MockTestimonyStore{
		Testimonies: map[string]*model.Testimony{"t-1": subject},
	}
	dispatcher := notify.NewDispatcher(nil, nil, testLog())

	engine := NewEngine(testimonies, &MockEmbeddingStore{}, &MockConnectionStore{}, dispatcher, discoveryConfig(), testLog())

	n, err := engine.Discover(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}
