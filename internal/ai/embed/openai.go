package embed

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/config"
)

// OpenAIEmbedder backs the section embedder with the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
	log    *logrus.Entry
}

func NewOpenAIEmbedder(cfg config.EmbeddingConfig, log *logrus.Entry) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding provider requires an api key")
	}

	conf := openai.DefaultConfig(cfg.APIKey)
	if cfg.URL != "" {
		conf.BaseURL = cfg.URL
	}

	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.SmallEmbedding3
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(conf),
		model:  model,
		log:    log.WithField("module", "embed_openai"),
	}, nil
}

func (e *OpenAIEmbedder) EmbedSections(ctx context.Context, sections []Section) (map[string][]float64, error) {
	sections = filterBlank(sections)
	if len(sections) == 0 {
		return map[string][]float64{}, nil
	}

	inputs := make([]string, len(sections))
	for i, s := range sections {
		inputs[i] = s.Text
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: inputs,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings call failed: %w", err)
	}

	result := make(map[string][]float64, len(sections))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(sections) {
			continue
		}
		vec := make([]float64, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		result[sections[item.Index].Name] = vec
	}

	for _, s := range sections {
		if _, ok := result[s.Name]; !ok {
			e.log.WithField("section", s.Name).Warn("no embedding returned for section")
		}
	}

	return result, nil
}
