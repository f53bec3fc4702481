package embedder

import (
	"context"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// LocalProvider embeds text offline with signed feature hashing over
// identifier words, word bigrams and character trigrams. Texts sharing
// vocabulary land close together, which is enough for code search without
// any network access.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a local feature hashing embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    featureHash(req.Text),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     LocalModel,
		Hash:      hash,
	}
	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      LocalModel,
	}, nil
}

func (l *LocalProvider) Dimension() int   { return LocalDimension }
func (l *LocalProvider) Provider() string { return ProviderLocal }
func (l *LocalProvider) Model() string    { return LocalModel }

func (l *LocalProvider) Close() error {
	if l.cache != nil {
		l.cache.Clear()
	}
	return nil
}

func featureHash(text string) []float32 {
	vec := make([]float32, LocalDimension)
	words := types.SplitIdentifier(text)

	add := func(feature string, weight float32) {
		h := xxhash.Sum64String(feature)
		idx := h % LocalDimension
		if h>>63 == 1 {
			weight = -weight
		}
		vec[idx] += weight
	}

	for i, w := range words {
		add("w:"+w, 1)
		if i > 0 {
			add("b:"+words[i-1]+" "+w, 0.5)
		}
		if len(w) >= 4 {
			padded := "^" + w + "$"
			for j := 0; j+3 <= len(padded); j++ {
				add("t:"+padded[j:j+3], 0.25)
			}
		}
	}

	if len(words) == 0 {
		add("raw:"+strings.TrimSpace(text), 1)
	}

	NormalizeVector(vec)
	return vec
}
