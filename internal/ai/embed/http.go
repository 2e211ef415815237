package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/config"
)

// HTTPEmbedder talks to a self-hosted embedding service: POST
// {model, input: [text...]}, response is a list of vector items, either bare
// or wrapped in a {"data": [...]} envelope.
type HTTPEmbedder struct {
	cfg    config.EmbeddingConfig
	client *http.Client
	log    *logrus.Entry
}

func NewHTTPEmbedder(cfg config.EmbeddingConfig, log *logrus.Entry) *HTTPEmbedder {
	return &HTTPEmbedder{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.WithField("module", "embed"),
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedItem is the accepted union of item shapes. The vector may arrive
// under "embedding", "vector" or "values"; fields are probed in that order.
type embedItem struct {
	Embedding []float64 `json:"embedding"`
	Vector    []float64 `json:"vector"`
	Values    []float64 `json:"values"`
}

func (it *embedItem) vector() []float64 {
	if len(it.Embedding) > 0 {
		return it.Embedding
	}
	if len(it.Vector) > 0 {
		return it.Vector
	}
	if len(it.Values) > 0 {
		return it.Values
	}
	return nil
}

// decodeItems accepts either a bare JSON array or a {"data": [...]} envelope.
// Any other shape is a hard failure.
func decodeItems(body []byte) ([]embedItem, error) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	raw := json.RawMessage(bytes.TrimSpace(body))

	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		raw = envelope.Data
	}

	var items []embedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("embedding response is not list-shaped: %w", err)
	}
	return items, nil
}

func (e *HTTPEmbedder) EmbedSections(ctx context.Context, sections []Section) (map[string][]float64, error) {
	sections = filterBlank(sections)
	if len(sections) == 0 {
		return map[string][]float64{}, nil
	}

	inputs := make([]string, len(sections))
	for i, s := range sections {
		inputs[i] = s.Text
	}

	payload, err := json.Marshal(embedRequest{Model: e.cfg.Model, Input: inputs})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(e.cfg.URL, "/")+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding response read failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding service returned %d", resp.StatusCode)
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]float64, len(sections))
	for i, s := range sections {
		if i >= len(items) {
			e.log.WithField("section", s.Name).Warn("no embedding item returned for section")
			continue
		}
		vec := items[i].vector()
		if vec == nil {
			e.log.WithField("section", s.Name).Warn("embedding item carries no recognizable vector field")
			continue
		}
		result[s.Name] = vec
	}

	return result, nil
}
