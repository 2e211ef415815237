package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/archivelab/testimony/internal/ai/embed"
	"github.com/archivelab/testimony/internal/ai/transcribe"
	"github.com/archivelab/testimony/internal/config"
	"github.com/archivelab/testimony/internal/model"
	"github.com/archivelab/testimony/internal/notify"
	"github.com/archivelab/testimony/internal/store"
)

// Discoverer triggers connection discovery for a freshly processed
// testimony. Satisfied by discovery.Engine.
type Discoverer interface {
	Discover(ctx context.Context, id string) (int, error)
}

// Orchestrator runs the processing pipeline for a testimony: transcription
// with retry, derived-field recomputation, embedding generation, and a
// fire-and-forget discovery trigger. A weighted semaphore caps how many
// testimonies are in flight at once; waiters are admitted in FIFO order.
type Orchestrator struct {
	testimonies store.TestimonyStore
	embeddings  store.EmbeddingStore
	transcriber transcribe.Transcriber
	embedder    embed.SectionEmbedder
	discoverer  Discoverer
	dispatcher  *notify.Dispatcher

	sem        *semaphore.Weighted
	cfg        config.PipelineConfig
	embedModel string
	log        *logrus.Entry

	// sleep is swapped out in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(
	testimonies store.TestimonyStore,
	embeddings store.EmbeddingStore,
	transcriber transcribe.Transcriber,
	embedder embed.SectionEmbedder,
	discoverer Discoverer,
	dispatcher *notify.Dispatcher,
	cfg config.PipelineConfig,
	embedModel string,
	log *logrus.Entry,
) *Orchestrator {
	return &Orchestrator{
		testimonies: testimonies,
		embeddings:  embeddings,
		transcriber: transcriber,
		embedder:    embedder,
		discoverer:  discoverer,
		dispatcher:  dispatcher,
		sem:         semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		cfg:         cfg,
		embedModel:  embedModel,
		log:         log.WithField("module", "pipeline"),
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ContentHash fingerprints the media source so a completed transcription is
// never redone for the same recording.
func ContentHash(mediaURL string) string {
	sum := sha256.Sum256([]byte(mediaURL))
	return hex.EncodeToString(sum[:])
}

// Process runs the full pipeline for one testimony, blocking until a
// concurrency slot is free.
func (o *Orchestrator) Process(ctx context.Context, id string) error {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire pipeline slot: %w", err)
	}
	defer o.sem.Release(1)

	t, err := o.testimonies.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load testimony %s: %w", id, err)
	}

	log := o.log.WithField("testimony_id", id)

	if t.HasMedia() {
		o.runTranscription(ctx, t, log)
	}

	o.updateDerived(ctx, t, log)
	o.runEmbedding(ctx, t, log)

	// Discovery runs detached from the pipeline so a slow or failing
	// discovery pass never holds a processing slot.
	if o.discoverer != nil {
		go func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := o.discoverer.Discover(dctx, id); err != nil {
				log.WithError(err).Warn("connection discovery failed")
			}
		}()
	}

	return nil
}

// runTranscription drives the transcription state machine. Terminal
// failures and exhausted retries are persisted; a completed transcription
// for unchanged media is skipped entirely.
func (o *Orchestrator) runTranscription(ctx context.Context, t *model.Testimony, log *logrus.Entry) {
	if t.MediaURL == "" {
		t.TranscriptionStatus = model.StatusFailed
		t.TranscriptionError = FormatFailure(FailNoMediaURL, "testimony has no media url")
		o.persistTranscription(ctx, t, log)
		return
	}

	hash := ContentHash(t.MediaURL)
	if t.Transcript != "" && t.MediaContentHash == hash {
		log.Debug("media unchanged and transcript cached, skipping transcription")
		return
	}

	t.TranscriptionStatus = model.StatusProcessing
	t.TranscriptionError = ""
	o.persistTranscription(ctx, t, log)

	transcript, terr := o.transcribeWithRetry(ctx, t, log)
	if terr != nil {
		code := failureFromTranscribe(terr)
		t.TranscriptionStatus = model.StatusFailed
		t.TranscriptionError = FormatFailure(code, terr.Error())
		o.persistTranscription(ctx, t, log)
		o.notifyTranscription(t, false)
		return
	}

	if transcript == "" {
		t.TranscriptionStatus = model.StatusFailed
		t.TranscriptionError = FormatFailure(FailEmptyResult, "no speech detected")
		o.persistTranscription(ctx, t, log)
		o.notifyTranscription(t, false)
		return
	}

	t.Transcript = transcript
	t.TranscriptionStatus = model.StatusCompleted
	t.TranscriptionError = ""
	t.MediaContentHash = hash
	o.persistTranscription(ctx, t, log)
	o.notifyTranscription(t, true)
}

// transcribeWithRetry makes up to MaxRetries attempts, backing off
// exponentially between retryable failures. The attempt counter on the
// testimony accumulates across runs so RetryFailed can enforce its ceiling.
func (o *Orchestrator) transcribeWithRetry(ctx context.Context, t *model.Testimony, log *logrus.Entry) (string, *transcribe.Error) {
	var lastErr *transcribe.Error
	for attempt := 1; attempt <= o.cfg.MaxRetries; attempt++ {
		t.TranscriptionAttempts++

		transcript, err := o.transcriber.Transcribe(ctx, t.MediaURL, t.MediaDurationSec)
		if err == nil {
			return transcript, nil
		}

		lastErr = transcribe.AsError(err)
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"code":    lastErr.Code,
		}).Warn("transcription attempt failed")

		if !lastErr.Retryable() || attempt == o.cfg.MaxRetries {
			break
		}

		delay := time.Duration(o.cfg.BackoffBaseMs) * time.Millisecond << (attempt - 1)
		if err := o.sleep(ctx, delay); err != nil {
			return "", &transcribe.Error{Code: transcribe.CodeTimeout, Err: err}
		}
	}
	return "", lastErr
}

func (o *Orchestrator) persistTranscription(ctx context.Context, t *model.Testimony, log *logrus.Entry) {
	err := o.testimonies.UpdateTranscription(ctx, t.ID, t.TranscriptionStatus, t.Transcript,
		t.TranscriptionError, t.TranscriptionAttempts, t.MediaContentHash)
	if err != nil {
		log.WithError(err).Error("failed to persist transcription state")
	}
}

// updateDerived recomputes the summary and key phrases from whatever text
// the testimony has now, transcript included.
func (o *Orchestrator) updateDerived(ctx context.Context, t *model.Testimony, log *logrus.Entry) {
	t.Summary = Summarize(t)
	t.KeyPhrases = KeyPhrases(t)
	if err := o.testimonies.UpdateDerived(ctx, t.ID, t.Summary, t.KeyPhrases); err != nil {
		log.WithError(err).Error("failed to persist derived fields")
	}
}

// runEmbedding regenerates the testimony's section vectors. Failures are
// recorded but never abort the pipeline: a testimony without vectors is
// still readable, it just cannot join the semantic pass of discovery.
func (o *Orchestrator) runEmbedding(ctx context.Context, t *model.Testimony, log *logrus.Entry) {
	sections := []embed.Section{
		{Name: model.SectionTitle, Text: t.Title},
		{Name: model.SectionDescription, Text: t.Description},
		{Name: model.SectionFullTestimony, Text: t.FullTestimony},
		{Name: model.SectionTranscript, Text: t.Transcript},
	}

	hasText := false
	for _, s := range sections {
		if strings.TrimSpace(s.Text) != "" {
			hasText = true
			break
		}
	}
	if !hasText {
		log.Debug("no text to embed, skipping embedding step")
		return
	}

	o.setEmbeddingStatus(ctx, t.ID, model.StatusPending, "", log)

	vectors, err := o.embedder.EmbedSections(ctx, sections)
	if err != nil {
		o.setEmbeddingStatus(ctx, t.ID, model.StatusFailed, FormatFailure(FailEmbedding, err.Error()), log)
		return
	}
	if len(vectors) == 0 {
		o.setEmbeddingStatus(ctx, t.ID, model.StatusFailed, FormatFailure(FailEmbedding, "no sections produced vectors"), log)
		return
	}

	if err := o.embeddings.Replace(ctx, t.ID, o.embedModel, vectors); err != nil {
		o.setEmbeddingStatus(ctx, t.ID, model.StatusFailed, FormatFailure(FailEmbedding, err.Error()), log)
		return
	}

	o.setEmbeddingStatus(ctx, t.ID, model.StatusCompleted, "", log)
}

func (o *Orchestrator) setEmbeddingStatus(ctx context.Context, id string, status model.PipelineStatus, errMsg string, log *logrus.Entry) {
	if err := o.testimonies.UpdateEmbeddingStatus(ctx, id, status, errMsg); err != nil {
		log.WithError(err).Error("failed to persist embedding state")
	}
}

// notifyTranscription tells the submitter how their recording fared.
func (o *Orchestrator) notifyTranscription(t *model.Testimony, ok bool) {
	if t.OwnerID == "" {
		return
	}

	if ok {
		o.dispatcher.NotifyAsync(notify.Notification{
			Kind:        "transcription_completed",
			Audience:    notify.AudienceUser,
			RecipientID: t.OwnerID,
			Title:       "Your testimony has been transcribed",
			Message:     "The transcript of your recording is ready for review.",
			Metadata:    map[string]interface{}{"testimony_id": t.ID},
		})
		o.dispatcher.EmailAsync(t.OwnerID, "Your testimony has been transcribed",
			"The transcript of your recording is ready for review.")
		return
	}

	msg := UserFacingMessage(t.TranscriptionError)
	o.dispatcher.NotifyAsync(notify.Notification{
		Kind:        "transcription_failed",
		Audience:    notify.AudienceUser,
		RecipientID: t.OwnerID,
		Title:       "We could not transcribe your testimony",
		Message:     msg,
		Metadata:    map[string]interface{}{"testimony_id": t.ID},
	})
	o.dispatcher.EmailAsync(t.OwnerID, "We could not transcribe your testimony", msg)
}

// ProcessPending sweeps testimonies stuck with unfinished pipeline steps,
// up to one batch. Each runs through the same gated Process entry point.
func (o *Orchestrator) ProcessPending(ctx context.Context) (int, error) {
	ids, err := o.testimonies.ListNeedingProcessing(ctx, o.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending testimonies: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if err := o.Process(ctx, id); err != nil {
			o.log.WithError(err).WithField("testimony_id", id).Error("pending sweep: processing failed")
			continue
		}
		processed++
	}
	return processed, nil
}

// RetryFailed resets failed transcriptions still under the attempt ceiling
// back to pending and reprocesses them.
func (o *Orchestrator) RetryFailed(ctx context.Context) (int, error) {
	ids, err := o.testimonies.ResetFailedTranscriptions(ctx, o.cfg.RetryAttemptCeil)
	if err != nil {
		return 0, fmt.Errorf("reset failed transcriptions: %w", err)
	}

	retried := 0
	for _, id := range ids {
		if err := o.Process(ctx, id); err != nil {
			o.log.WithError(err).WithField("testimony_id", id).Error("retry sweep: processing failed")
			continue
		}
		retried++
	}
	return retried, nil
}
