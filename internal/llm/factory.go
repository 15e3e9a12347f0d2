package llm

import (
	"fmt"
	"strings"

	"github.com/srinivasgumdelli/moat/config"
)

// NewClient builds the completion client and embedder for the configured
// provider. Anthropic has no embedding endpoint, so that path pairs the
// completion client with an OpenAI embedder when an embedding model is set.
func NewClient(cfg config.LLMConfig) (Client, Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		c := NewOpenAIClient(cfg.APIKey, cfg.EmbeddingModel, cfg.BaseURL)
		return c, c, nil
	case "anthropic":
		c := NewAnthropicClient(cfg.APIKey, cfg.BaseURL)
		var emb Embedder
		if cfg.EmbeddingAPIKey != "" {
			emb = NewOpenAIClient(cfg.EmbeddingAPIKey, cfg.EmbeddingModel, "")
		}
		return c, emb, nil
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
