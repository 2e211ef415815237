package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/config"
)

const (
	// maxTimeout is the hard ceiling on a single transcription call.
	maxTimeout = 20 * time.Minute
	// unknownDurationTimeout is used when the media duration was not
	// reported and no estimate is possible.
	unknownDurationTimeout = 5 * time.Minute
)

// Transcriber sends media to an external transcription provider. An empty
// string with a nil error is a valid terminal outcome (silence, music-only
// media); callers must not retry it.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaURL string, durationSec *float64) (string, error)
}

// HTTPClient talks to the whisper-style transcription server: POST
// /transcribe with {audioUrl} and a duration-scaled timeout.
type HTTPClient struct {
	cfg    config.TranscriptionConfig
	client *http.Client
	log    *logrus.Entry
}

func NewHTTPClient(cfg config.TranscriptionConfig, log *logrus.Entry) *HTTPClient {
	// Timeout is applied per request via context, scaled by media duration.
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.WithField("module", "transcribe"),
	}
}

// New picks the chunked client when a chunk upload endpoint is configured,
// otherwise the plain URL-based client.
func New(cfg config.TranscriptionConfig, log *logrus.Entry) Transcriber {
	if cfg.ChunkUploadURL != "" {
		return NewChunkedClient(cfg, log)
	}
	return NewHTTPClient(cfg, log)
}

// timeoutFor scales the call timeout with media duration:
// clamp(max(base, 2*duration+120s), base, 20m).
func (c *HTTPClient) timeoutFor(durationSec *float64) time.Duration {
	base := c.cfg.BaseTimeout()

	if durationSec == nil || *durationSec <= 0 {
		c.log.Warn("media duration unknown, transcription time cannot be estimated; using flat timeout")
		if base > unknownDurationTimeout {
			return base
		}
		return unknownDurationTimeout
	}

	est := time.Duration(2*(*durationSec))*time.Second + 120*time.Second
	if est < base {
		est = base
	}
	if est > maxTimeout {
		est = maxTimeout
	}
	return est
}

type transcribeRequest struct {
	AudioURL string `json:"audioUrl"`
	Language string `json:"language,omitempty"`
}

// transcribeResponse covers the accepted provider response shapes: the
// transcript may arrive under "text", "transcript" or "data".
type transcribeResponse struct {
	Text       string          `json:"text"`
	Transcript string          `json:"transcript"`
	Data       json.RawMessage `json:"data"`
	ErrMsg     string          `json:"error"`
}

// transcriptText probes the accepted fields in order and returns the first
// present one.
func (r *transcribeResponse) transcriptText() string {
	if r.Text != "" {
		return r.Text
	}
	if r.Transcript != "" {
		return r.Transcript
	}
	if len(r.Data) > 0 {
		var s string
		if err := json.Unmarshal(r.Data, &s); err == nil {
			return s
		}
	}
	return ""
}

func (c *HTTPClient) Transcribe(ctx context.Context, mediaURL string, durationSec *float64) (string, error) {
	timeout := c.timeoutFor(durationSec)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(transcribeRequest{AudioURL: mediaURL, Language: c.cfg.Language})
	if err != nil {
		return "", &Error{Code: CodeUnknown, Err: err}
	}

	endpoint := strings.TrimRight(c.cfg.URL, "/") + "/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &Error{Code: CodeUnknown, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.WithFields(logrus.Fields{
		"media_url": mediaURL,
		"timeout":   timeout.String(),
	}).Info("sending transcription request")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &Error{Code: classifyTransport(err), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Code: classifyTransport(err), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		code := classifyStatus(resp.StatusCode, string(body))
		return "", &Error{
			Code:   code,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &Error{Code: CodeUnknown, Err: fmt.Errorf("undecodable provider response: %w", err)}
	}
	if parsed.ErrMsg != "" {
		return "", &Error{Code: CodeUnknown, Status: resp.StatusCode, Err: fmt.Errorf("provider error: %s", parsed.ErrMsg)}
	}

	text := strings.TrimSpace(parsed.transcriptText())
	if text == "" {
		// Empty-but-successful: no speech detected. Not an error.
		c.log.WithField("media_url", mediaURL).Info("provider returned empty transcript")
		return "", nil
	}

	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
