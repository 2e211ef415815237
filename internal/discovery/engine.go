package discovery

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/config"
	"github.com/archivelab/testimony/internal/model"
	"github.com/archivelab/testimony/internal/notify"
	"github.com/archivelab/testimony/internal/store"
)

const (
	sourceSemantic = "semantic"
	sourceRules    = "rules"
	sourceHybrid   = "hybrid"
)

// Engine recomputes a testimony's connections from its embeddings and its
// structured metadata. Runs are idempotent: rated edges are updated in
// place, unrated ones are discarded and rebuilt.
type Engine struct {
	testimonies store.TestimonyStore
	embeddings  store.EmbeddingStore
	connections store.ConnectionStore
	dispatcher  *notify.Dispatcher
	cfg         config.DiscoveryConfig
	log         *logrus.Entry
}

func NewEngine(
	testimonies store.TestimonyStore,
	embeddings store.EmbeddingStore,
	connections store.ConnectionStore,
	dispatcher *notify.Dispatcher,
	cfg config.DiscoveryConfig,
	log *logrus.Entry,
) *Engine {
	return &Engine{
		testimonies: testimonies,
		embeddings:  embeddings,
		connections: connections,
		dispatcher:  dispatcher,
		cfg:         cfg,
		log:         log.WithField("module", "discovery"),
	}
}

// candidateEdge is an in-flight edge before persistence.
type candidateEdge struct {
	other *model.Testimony
	typ   model.ConnectionType
	score float64
	src   string
}

// Discover rebuilds the connection set for one testimony. Existing rated
// edges survive with refreshed scores; everything else is recomputed from
// scratch against all approved, published candidates.
func (e *Engine) Discover(ctx context.Context, id string) (int, error) {
	subject, err := e.testimonies.Get(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("load testimony %s: %w", id, err)
	}

	existing, err := e.connections.ListTouching(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("list existing connections: %w", err)
	}
	rated := make(map[string]bool)
	for _, c := range existing {
		if c.Rating != nil {
			rated[c.PairKey()] = true
		}
	}

	if err := e.connections.DeleteUnratedTouching(ctx, id); err != nil {
		return 0, fmt.Errorf("clear unrated connections: %w", err)
	}

	candidates, err := e.testimonies.ListCandidates(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	thresholds, err := e.currentThresholds(ctx)
	if err != nil {
		return 0, err
	}

	semantic := e.semanticEdges(ctx, subject, candidates, thresholds)
	rules := e.ruleEdges(subject, candidates)
	edges := e.fuse(semantic, rules)

	persisted := 0
	for _, edge := range edges {
		key := model.PairKey(subject.ID, edge.other.ID)
		if rated[key] {
			if err := e.refreshRatedPair(ctx, subject.ID, edge); err != nil {
				e.log.WithError(err).WithField("pair", key).Error("failed to refresh rated connection")
			}
			continue
		}
		if err := e.insertPair(ctx, subject.ID, edge); err != nil {
			e.log.WithError(err).WithField("pair", key).Error("failed to persist connection")
			continue
		}
		persisted++
		if edge.score >= e.cfg.NotifyScoreFloor {
			e.announce(subject, edge)
		}
	}

	e.log.WithFields(logrus.Fields{
		"testimony_id": id,
		"candidates":   len(candidates),
		"edges":        persisted,
	}).Info("connection discovery complete")

	return persisted, nil
}

// RebuildAll runs discovery for every approved, published testimony.
// Per-testimony failures are logged and never abort the sweep.
func (e *Engine) RebuildAll(ctx context.Context) (int, error) {
	candidates, err := e.testimonies.ListCandidates(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("list testimonies: %w", err)
	}

	total := 0
	for _, t := range candidates {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := e.Discover(ctx, t.ID)
		if err != nil {
			e.log.WithError(err).WithField("testimony_id", t.ID).Error("discovery failed during rebuild")
			continue
		}
		total += n
	}
	return total, nil
}

// Thresholds reports the currently effective semantic cutoffs, after rating
// feedback. Exposed for the quality report endpoint.
func (e *Engine) Thresholds(ctx context.Context) (Thresholds, error) {
	return e.currentThresholds(ctx)
}

func (e *Engine) currentThresholds(ctx context.Context) (Thresholds, error) {
	stats, err := e.connections.TypeStats(ctx)
	if err != nil {
		return Thresholds{}, fmt.Errorf("aggregate edge stats: %w", err)
	}
	return AdaptiveThresholds(e.cfg, stats), nil
}

// semanticEdges scores the subject against each candidate by multi-vector
// cosine similarity, keeping the top TopSemanticEdges classified hits. The
// key-phrase overlap pre-filter skips obviously unrelated pairs before any
// vector math; it is disabled when either side has no key phrases.
func (e *Engine) semanticEdges(ctx context.Context, subject *model.Testimony, candidates []*model.Testimony, thresholds Thresholds) []candidateEdge {
	records, err := e.embeddings.GetByTestimony(ctx, subject.ID)
	if err != nil {
		e.log.WithError(err).WithField("testimony_id", subject.ID).Warn("could not load embeddings, skipping semantic pass")
		return nil
	}
	subjectVectors := model.SectionVectors(records)
	if len(subjectVectors) == 0 {
		return nil
	}

	var edges []candidateEdge
	for _, cand := range candidates {
		overlap, enabled := KeyPhraseOverlap(subject.KeyPhrases, cand.KeyPhrases)
		if enabled && overlap < e.cfg.KeyPhraseOverlapMin {
			continue
		}

		candRecords, err := e.embeddings.GetByTestimony(ctx, cand.ID)
		if err != nil {
			e.log.WithError(err).WithField("testimony_id", cand.ID).Warn("could not load candidate embeddings")
			continue
		}
		candVectors := model.SectionVectors(candRecords)
		if len(candVectors) == 0 {
			continue
		}

		score := MultiVectorSimilarity(subjectVectors, candVectors)
		typ := thresholds.Classify(score)
		if typ == "" {
			continue
		}
		edges = append(edges, candidateEdge{other: cand, typ: typ, score: score, src: sourceSemantic})
	}

	sort.SliceStable(edges, func(i, j int) bool { return edges[i].score > edges[j].score })
	if len(edges) > e.cfg.TopSemanticEdges {
		edges = edges[:e.cfg.TopSemanticEdges]
	}
	return edges
}

// ruleEdges keeps the strongest deterministic signal per candidate.
func (e *Engine) ruleEdges(subject *model.Testimony, candidates []*model.Testimony) []candidateEdge {
	var edges []candidateEdge
	for _, cand := range candidates {
		best, ok := BestRuleScore(RuleMatches(subject, cand))
		if !ok {
			continue
		}
		edges = append(edges, candidateEdge{other: cand, typ: best.Type, score: best.Score, src: sourceRules})
	}
	return edges
}

// fuse merges the semantic and rule passes. A pair hit by both becomes a
// hybrid edge: a weighted blend of the two scores, with a small boost
// (capped at 0.98) when both signals are independently strong. One edge
// survives per unordered pair, the highest-scoring one.
func (e *Engine) fuse(semantic, rules []candidateEdge) []candidateEdge {
	type pairSignals struct {
		sem  *candidateEdge
		rule *candidateEdge
	}

	pairs := make(map[string]*pairSignals)
	order := make([]string, 0, len(semantic)+len(rules))
	record := func(edge candidateEdge) *pairSignals {
		key := edge.other.ID
		p, ok := pairs[key]
		if !ok {
			p = &pairSignals{}
			pairs[key] = p
			order = append(order, key)
		}
		return p
	}

	for i := range semantic {
		record(semantic[i]).sem = &semantic[i]
	}
	for i := range rules {
		p := record(rules[i])
		if p.rule == nil || rules[i].score > p.rule.score {
			p.rule = &rules[i]
		}
	}

	var out []candidateEdge
	for _, key := range order {
		p := pairs[key]
		switch {
		case p.sem != nil && p.rule != nil:
			score := p.sem.score*e.cfg.SemanticWeight + p.rule.score*e.cfg.RuleWeight
			if p.sem.score > 0.80 && p.rule.score > 0.85 {
				score *= 1.05
				if score > 0.98 {
					score = 0.98
				}
			}
			out = append(out, candidateEdge{other: p.sem.other, typ: model.TypeHybrid, score: score, src: sourceHybrid})
		case p.sem != nil:
			out = append(out, *p.sem)
		default:
			out = append(out, *p.rule)
		}
	}
	return out
}

// insertPair writes the mirrored edge pair, each direction with its own id.
func (e *Engine) insertPair(ctx context.Context, subjectID string, edge candidateEdge) error {
	forward := model.Connection{
		UUID:   uuid.NewString(),
		FromID: subjectID,
		ToID:   edge.other.ID,
		Type:   edge.typ,
		Score:  edge.score,
		Source: edge.src,
	}
	if err := e.connections.Upsert(ctx, forward); err != nil {
		return err
	}

	reverse := forward
	reverse.UUID = uuid.NewString()
	reverse.FromID, reverse.ToID = forward.ToID, forward.FromID
	return e.connections.Upsert(ctx, reverse)
}

// refreshRatedPair updates both directions of a user-rated edge in place so
// the rating and edge identity survive recomputation.
func (e *Engine) refreshRatedPair(ctx context.Context, subjectID string, edge candidateEdge) error {
	if err := e.connections.UpdatePair(ctx, subjectID, edge.other.ID, edge.typ, edge.score, edge.src); err != nil {
		return err
	}
	return e.connections.UpdatePair(ctx, edge.other.ID, subjectID, edge.typ, edge.score, edge.src)
}

// announce notifies both testimony owners (unless they are the same person)
// and the moderator queue about a high-confidence new connection.
func (e *Engine) announce(subject *model.Testimony, edge candidateEdge) {
	title := "New connection found"
	message := notify.ConnectionMessage(edge.typ, edge.score)
	meta := map[string]interface{}{
		"from_id": subject.ID,
		"to_id":   edge.other.ID,
		"type":    string(edge.typ),
		"score":   edge.score,
	}

	if subject.OwnerID != "" {
		e.dispatcher.NotifyAsync(notify.Notification{
			Kind:        "connection_discovered",
			Audience:    notify.AudienceUser,
			RecipientID: subject.OwnerID,
			Title:       title,
			Message:     message,
			Metadata:    meta,
		})
	}
	if edge.other.OwnerID != "" && edge.other.OwnerID != subject.OwnerID {
		e.dispatcher.NotifyAsync(notify.Notification{
			Kind:        "connection_discovered",
			Audience:    notify.AudienceUser,
			RecipientID: edge.other.OwnerID,
			Title:       title,
			Message:     message,
			Metadata:    meta,
		})
	}
	e.dispatcher.NotifyAsync(notify.Notification{
		Kind:     "connection_discovered",
		Audience: notify.AudienceModerators,
		Title:    title,
		Message:  message,
		Metadata: meta,
	})
}
