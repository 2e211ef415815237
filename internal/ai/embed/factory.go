package embed

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/archivelab/testimony/internal/config"
)

// New builds the configured embedding provider.
func New(cfg config.EmbeddingConfig, log *logrus.Entry) (SectionEmbedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "local":
		if cfg.URL == "" {
			return nil, fmt.Errorf("local embedding provider requires a url")
		}
		return NewHTTPEmbedder(cfg, log), nil

	case "openai":
		return NewOpenAIEmbedder(cfg, log)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
