package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/config"
)

// ChunkedClient handles providers with a hard payload-size ceiling. It
// downloads the media once, splits it into bounded byte chunks, transcribes
// each chunk independently with its own retry budget, and joins the results.
type ChunkedClient struct {
	cfg    config.TranscriptionConfig
	client *http.Client
	log    *logrus.Entry
}

func NewChunkedClient(cfg config.TranscriptionConfig, log *logrus.Entry) *ChunkedClient {
	return &ChunkedClient{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.WithField("module", "transcribe_chunked"),
	}
}

func (c *ChunkedClient) Transcribe(ctx context.Context, mediaURL string, durationSec *float64) (string, error) {
	data, err := c.download(ctx, mediaURL)
	if err != nil {
		return "", err
	}

	chunks := splitChunks(data, c.cfg.MaxPayloadBytes)
	c.log.WithFields(logrus.Fields{
		"media_url": mediaURL,
		"bytes":     len(data),
		"chunks":    len(chunks),
	}).Info("transcribing media in chunks")

	var parts []string
	for i, chunk := range chunks {
		text, err := c.transcribeChunk(ctx, chunk, i)
		if err != nil {
			c.log.WithError(err).WithField("chunk", i).Warn("chunk transcription failed, skipping")
			continue
		}
		if text != "" {
			parts = append(parts, text)
		}
	}

	// All chunks failing (or all silent) is the empty terminal outcome.
	return strings.Join(parts, " "), nil
}

func (c *ChunkedClient) download(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, &Error{Code: CodeUnknown, Err: err}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &Error{Code: classifyTransport(err), Err: fmt.Errorf("media download failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Code:   classifyStatus(resp.StatusCode, ""),
			Status: resp.StatusCode,
			Err:    fmt.Errorf("media download returned %d", resp.StatusCode),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Code: classifyTransport(err), Err: fmt.Errorf("media download failed: %w", err)}
	}
	return data, nil
}

// transcribeChunk uploads one chunk with bounded exponential backoff.
func (c *ChunkedClient) transcribeChunk(ctx context.Context, chunk []byte, index int) (string, error) {
	var text string

	op := func() error {
		t, err := c.uploadChunk(ctx, chunk, index)
		if err != nil {
			if te := AsError(err); !te.Retryable() {
				return backoff.Permanent(err)
			}
			return err
		}
		text = t
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.cfg.ChunkMaxRetries)),
		ctx,
	)

	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return text, nil
}

func (c *ChunkedClient) uploadChunk(ctx context.Context, chunk []byte, index int) (string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", fmt.Sprintf("chunk-%d.bin", index))
	if err != nil {
		return "", &Error{Code: CodeUnknown, Err: err}
	}
	if _, err := part.Write(chunk); err != nil {
		return "", &Error{Code: CodeUnknown, Err: err}
	}
	if err := w.Close(); err != nil {
		return "", &Error{Code: CodeUnknown, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.ChunkUploadURL, &buf)
	if err != nil {
		return "", &Error{Code: CodeUnknown, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

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
		return "", &Error{Code: code, Status: resp.StatusCode, Err: fmt.Errorf("chunk upload returned %d", resp.StatusCode)}
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &Error{Code: CodeUnknown, Err: fmt.Errorf("undecodable chunk response: %w", err)}
	}

	return strings.TrimSpace(parsed.transcriptText()), nil
}

// splitChunks slices data into pieces no larger than ceiling bytes.
func splitChunks(data []byte, ceiling int64) [][]byte {
	if ceiling <= 0 || int64(len(data)) <= ceiling {
		return [][]byte{data}
	}

	var chunks [][]byte
	for start := int64(0); start < int64(len(data)); start += ceiling {
		end := start + ceiling
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		chunks = append(chunks, data[start:end])
	}
	return chunks
}
