package embedding

import (
	"fmt"

	"finrag/config"
	"finrag/internal/port"
)

// New creates the embedder selected by cfg, wrapped in a query cache when enabled.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	opts := Options{
		BaseURL:   cfg.BaseURL,
		Dimension: cfg.Dimension,
		BatchSize: cfg.BatchSize,
		Timeout:   cfg.Timeout,
	}

	var embedder port.Embedder
	var err error
	switch cfg.Provider {
	case "hash":
		embedder = NewHashingEmbedder(cfg.Model, cfg.Dimension)
	case "openai":
		embedder, err = NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "deepseek":
		embedder, err = NewDeepSeekEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "jina":
		embedder, err = NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, opts)
	case "ollama":
		embedder = NewOllamaEmbedder(cfg.Model, opts)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if cfg.QueryCacheSize > 0 {
		embedder = NewCachedEmbedder(embedder, cfg.QueryCacheSize)
	}
	return embedder, nil
}
