package embedder

import (
	"fmt"
	"strings"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // jina, openai, local or empty to auto-detect
	Model     string
	BaseURL   string
	OpenAIKey string
	JinaKey   string
	CacheSize int
}

// New creates an embedder from cfg.
// Priority:
// 1. Explicit Provider
// 2. Available API keys, Jina first
// 3. Local feature hashing
func New(cfg Config) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)
	opts := []HTTPOption{WithBaseURL(cfg.BaseURL), WithModel(cfg.Model)}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider(cfg)
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.JinaKey, cache, opts...)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIKey, cache, opts...)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, provider)
	}
}

// DetectProvider picks a provider from the keys present in cfg
func DetectProvider(cfg Config) string {
	if cfg.JinaKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
