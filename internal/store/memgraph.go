package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/model"
)

// MemgraphStore backs all three store interfaces with one Memgraph/Neo4j
// database: testimonies and embeddings are nodes, connections are
// relationships.
type MemgraphStore struct {
	Driver neo4j.DriverWithContext
	log    *logrus.Entry
}

var (
	_ TestimonyStore  = (*MemgraphStore)(nil)
	_ EmbeddingStore  = (*MemgraphStore)(nil)
	_ ConnectionStore = (*MemgraphStore)(nil)
)

func NewMemgraphStore(uri, username, password string, log *logrus.Entry) (*MemgraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}

	log.WithField("uri", uri).Info("connected to Memgraph")
	return &MemgraphStore{Driver: driver, log: log.WithField("module", "store")}, nil
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

func (s *MemgraphStore) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (s *MemgraphStore) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE INDEX ON :Testimony(id);",
		"CREATE INDEX ON :Testimony(status);",
		"CREATE INDEX ON :Embedding(testimony_id);",
	}

	for _, q := range queries {
		if _, err := s.ExecuteQuery(ctx, q, nil); err != nil {
			// Index may already exist.
			s.log.WithError(err).WithField("query", q).Warn("failed to create index")
		}
	}
	return nil
}

// --- TestimonyStore ---

func (s *MemgraphStore) Save(ctx context.Context, t *model.Testimony) error {
	params, err := testimonyParams(t)
	if err != nil {
		return err
	}
	_, err = s.ExecuteQuery(ctx, SaveTestimonyQuery, params)
	return err
}

func (s *MemgraphStore) Get(ctx context.Context, id string) (*model.Testimony, error) {
	res, err := s.ExecuteQuery(ctx, GetTestimonyQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, fmt.Errorf("testimony %s not found", id)
	}
	return testimonyFromRecord(res.Records[0])
}

func (s *MemgraphStore) ListCandidates(ctx context.Context, excludeID string) ([]*model.Testimony, error) {
	res, err := s.ExecuteQuery(ctx, ListCandidatesQuery, map[string]interface{}{"exclude_id": excludeID})
	if err != nil {
		return nil, err
	}

	out := make([]*model.Testimony, 0, len(res.Records))
	for _, rec := range res.Records {
		t, err := testimonyFromRecord(rec)
		if err != nil {
			s.log.WithError(err).Warn("skipping undecodable testimony record")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *MemgraphStore) ListNeedingProcessing(ctx context.Context, limit int) ([]string, error) {
	res, err := s.ExecuteQuery(ctx, ListNeedingProcessingQuery, map[string]interface{}{"limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	return idsFromRecords(res.Records), nil
}

func (s *MemgraphStore) ResetFailedTranscriptions(ctx context.Context, maxAttempts int) ([]string, error) {
	res, err := s.ExecuteQuery(ctx, ResetFailedTranscriptionsQuery, map[string]interface{}{"max_attempts": int64(maxAttempts)})
	if err != nil {
		return nil, err
	}
	return idsFromRecords(res.Records), nil
}

func (s *MemgraphStore) UpdateTranscription(ctx context.Context, id string, status model.PipelineStatus, transcript, errMsg string, attempts int, contentHash string) error {
	_, err := s.ExecuteQuery(ctx, UpdateTranscriptionQuery, map[string]interface{}{
		"id":           id,
		"status":       string(status),
		"transcript":   transcript,
		"error":        errMsg,
		"attempts":     int64(attempts),
		"content_hash": contentHash,
	})
	return err
}

func (s *MemgraphStore) UpdateEmbeddingStatus(ctx context.Context, id string, status model.PipelineStatus, errMsg string) error {
	_, err := s.ExecuteQuery(ctx, UpdateEmbeddingStatusQuery, map[string]interface{}{
		"id":     id,
		"status": string(status),
		"error":  errMsg,
	})
	return err
}

func (s *MemgraphStore) UpdateDerived(ctx context.Context, id, summary string, keyPhrases []string) error {
	_, err := s.ExecuteQuery(ctx, UpdateDerivedQuery, map[string]interface{}{
		"id":          id,
		"summary":     summary,
		"key_phrases": keyPhrases,
	})
	return err
}

// --- EmbeddingStore ---

func (s *MemgraphStore) GetByTestimony(ctx context.Context, id string) ([]model.EmbeddingRecord, error) {
	res, err := s.ExecuteQuery(ctx, GetEmbeddingsQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}

	out := make([]model.EmbeddingRecord, 0, len(res.Records))
	for _, rec := range res.Records {
		section, _ := rec.Get("section")
		modelName, _ := rec.Get("model")
		vector, _ := rec.Get("vector")
		out = append(out, model.EmbeddingRecord{
			TestimonyID: id,
			Section:     asString(section),
			Model:       asString(modelName),
			Vector:      asFloatSlice(vector),
		})
	}
	return out, nil
}

func (s *MemgraphStore) Replace(ctx context.Context, testimonyID, modelName string, vectors map[string][]float64) error {
	rows := make([]map[string]interface{}, 0, len(vectors))
	for section, vec := range vectors {
		rows = append(rows, map[string]interface{}{"section": section, "vector": vec})
	}

	_, err := s.ExecuteQuery(ctx, ReplaceEmbeddingsQuery, map[string]interface{}{
		"id":    testimonyID,
		"model": modelName,
		"rows":  rows,
	})
	return err
}

// --- ConnectionStore ---

func (s *MemgraphStore) ListTouching(ctx context.Context, id string) ([]model.Connection, error) {
	return s.listConnections(ctx, ListTouchingConnectionsQuery, id)
}

func (s *MemgraphStore) ListFrom(ctx context.Context, id string) ([]model.Connection, error) {
	return s.listConnections(ctx, ListConnectionsFromQuery, id)
}

func (s *MemgraphStore) listConnections(ctx context.Context, query, id string) ([]model.Connection, error) {
	res, err := s.ExecuteQuery(ctx, query, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}

	out := make([]model.Connection, 0, len(res.Records))
	for _, rec := range res.Records {
		out = append(out, connectionFromRecord(rec))
	}
	return out, nil
}

func (s *MemgraphStore) DeleteUnratedTouching(ctx context.Context, id string) error {
	_, err := s.ExecuteQuery(ctx, DeleteUnratedTouchingQuery, map[string]interface{}{"id": id})
	return err
}

func (s *MemgraphStore) Upsert(ctx context.Context, c model.Connection) error {
	_, err := s.ExecuteQuery(ctx, UpsertConnectionQuery, map[string]interface{}{
		"from_id":    c.FromID,
		"to_id":      c.ToID,
		"uuid":       c.UUID,
		"type":       string(c.Type),
		"score":      c.Score,
		"source":     c.Source,
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	})
	return err
}

func (s *MemgraphStore) UpdatePair(ctx context.Context, fromID, toID string, typ model.ConnectionType, score float64, source string) error {
	_, err := s.ExecuteQuery(ctx, UpdateConnectionPairQuery, map[string]interface{}{
		"from_id": fromID,
		"to_id":   toID,
		"type":    string(typ),
		"score":   score,
		"source":  source,
	})
	return err
}

func (s *MemgraphStore) Rate(ctx context.Context, fromID, toID string, rating int) error {
	res, err := s.ExecuteQuery(ctx, RateConnectionQuery, map[string]interface{}{
		"from_id": fromID,
		"to_id":   toID,
		"rating":  int64(rating),
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("connection %s -> %s not found", fromID, toID)
	}
	return nil
}

func (s *MemgraphStore) TypeStats(ctx context.Context) ([]model.EdgeTypeStats, error) {
	res, err := s.ExecuteQuery(ctx, ConnectionTypeStatsQuery, nil)
	if err != nil {
		return nil, err
	}

	out := make([]model.EdgeTypeStats, 0, len(res.Records))
	for _, rec := range res.Records {
		typ, _ := rec.Get("type")
		edgeCount, _ := rec.Get("edge_count")
		avgScore, _ := rec.Get("avg_score")
		avgRating, _ := rec.Get("avg_rating")
		ratingCount, _ := rec.Get("rating_count")
		out = append(out, model.EdgeTypeStats{
			Type:        model.ConnectionType(asString(typ)),
			EdgeCount:   int(asInt(edgeCount)),
			AvgScore:    asFloat(avgScore),
			AvgRating:   asFloat(avgRating),
			RatingCount: int(asInt(ratingCount)),
		})
	}
	return out, nil
}

// --- record/param helpers ---

func testimonyParams(t *model.Testimony) (map[string]interface{}, error) {
	eventsJSON, err := json.Marshal(t.Events)
	if err != nil {
		return nil, err
	}
	locationsJSON, err := json.Marshal(t.Locations)
	if err != nil {
		return nil, err
	}
	relativesJSON, err := json.Marshal(t.Relatives)
	if err != nil {
		return nil, err
	}

	var duration interface{}
	if t.MediaDurationSec != nil {
		duration = *t.MediaDurationSec
	}

	return map[string]interface{}{
		"id":                     t.ID,
		"owner_id":               t.OwnerID,
		"title":                  t.Title,
		"description":            t.Description,
		"full_testimony":         t.FullTestimony,
		"transcript":             t.Transcript,
		"summary":                t.Summary,
		"key_phrases":            t.KeyPhrases,
		"submission_kind":        string(t.Kind),
		"media_url":              t.MediaURL,
		"media_duration_sec":     duration,
		"media_content_hash":     t.MediaContentHash,
		"status":                 string(t.Status),
		"is_published":           t.IsPublished,
		"transcription_status":   string(t.TranscriptionStatus),
		"transcription_error":    t.TranscriptionError,
		"transcription_attempts": int64(t.TranscriptionAttempts),
		"embedding_status":       string(t.EmbeddingStatus),
		"embedding_error":        t.EmbeddingError,
		"relation_to_event":      t.RelationToEvent,
		"events_json":            string(eventsJSON),
		"locations_json":         string(locationsJSON),
		"relatives_json":         string(relativesJSON),
		"event_date_from":        timeParam(t.EventDateFrom),
		"event_date_to":          timeParam(t.EventDateTo),
		"created_at":             t.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func testimonyFromRecord(rec *db.Record) (*model.Testimony, error) {
	get := func(key string) interface{} {
		v, _ := rec.Get(key)
		return v
	}

	t := &model.Testimony{
		ID:                    asString(get("id")),
		OwnerID:               asString(get("owner_id")),
		Title:                 asString(get("title")),
		Description:           asString(get("description")),
		FullTestimony:         asString(get("full_testimony")),
		Transcript:            asString(get("transcript")),
		Summary:               asString(get("summary")),
		KeyPhrases:            asStringSlice(get("key_phrases")),
		Kind:                  model.SubmissionKind(asString(get("submission_kind"))),
		MediaURL:              asString(get("media_url")),
		MediaContentHash:      asString(get("media_content_hash")),
		Status:                model.ReviewStatus(asString(get("status"))),
		IsPublished:           asBool(get("is_published")),
		TranscriptionStatus:   model.PipelineStatus(asString(get("transcription_status"))),
		TranscriptionError:    asString(get("transcription_error")),
		TranscriptionAttempts: int(asInt(get("transcription_attempts"))),
		EmbeddingStatus:       model.PipelineStatus(asString(get("embedding_status"))),
		EmbeddingError:        asString(get("embedding_error")),
		RelationToEvent:       asString(get("relation_to_event")),
		EventDateFrom:         asTimePtr(get("event_date_from")),
		EventDateTo:           asTimePtr(get("event_date_to")),
	}

	if d := get("media_duration_sec"); d != nil {
		v := asFloat(d)
		t.MediaDurationSec = &v
	}
	if created := asTimePtr(get("created_at")); created != nil {
		t.CreatedAt = *created
	}

	if raw := asString(get("events_json")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.Events); err != nil {
			return nil, fmt.Errorf("testimony %s: bad events_json: %w", t.ID, err)
		}
	}
	if raw := asString(get("locations_json")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.Locations); err != nil {
			return nil, fmt.Errorf("testimony %s: bad locations_json: %w", t.ID, err)
		}
	}
	if raw := asString(get("relatives_json")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &t.Relatives); err != nil {
			return nil, fmt.Errorf("testimony %s: bad relatives_json: %w", t.ID, err)
		}
	}

	return t, nil
}

func connectionFromRecord(rec *db.Record) model.Connection {
	get := func(key string) interface{} {
		v, _ := rec.Get(key)
		return v
	}

	c := model.Connection{
		UUID:   asString(get("uuid")),
		FromID: asString(get("from_id")),
		ToID:   asString(get("to_id")),
		Type:   model.ConnectionType(asString(get("type"))),
		Score:  asFloat(get("score")),
		Source: asString(get("source")),
	}
	if r := get("rating"); r != nil {
		v := int(asInt(r))
		c.Rating = &v
	}
	if created := asTimePtr(get("created_at")); created != nil {
		c.CreatedAt = *created
	}
	return c
}

func idsFromRecords(records []*db.Record) []string {
	out := make([]string, 0, len(records))
	for _, rec := range records {
		id, _ := rec.Get("id")
		out = append(out, asString(id))
	}
	return out
}

func timeParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func asFloatSlice(v interface{}) []float64 {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		out = append(out, asFloat(item))
	}
	return out
}

func asStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, asString(item))
	}
	return out
}

func asTimePtr(v interface{}) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
