package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	LocalModel         = "feature-hash-v1"

	// Default endpoints, both speak the OpenAI embeddings wire format
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// HTTPProvider implements Embedder against an OpenAI compatible
// /embeddings endpoint.
type HTTPProvider struct {
	name       string
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig

	mu        sync.RWMutex
	dimension int
}

// HTTPOption customizes an HTTPProvider
type HTTPOption func(*HTTPProvider)

// WithBaseURL overrides the API base URL
func WithBaseURL(url string) HTTPOption {
	return func(p *HTTPProvider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithModel overrides the model name. The dimension is then learned from the
// first response.
func WithModel(model string) HTTPOption {
	return func(p *HTTPProvider) {
		if model != "" && model != p.model {
			p.model = model
			p.dimension = 0
		}
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if c != nil {
			p.httpClient = c
		}
	}
}

// WithRetry replaces the retry policy
func WithRetry(cfg RetryConfig) HTTPOption {
	return func(p *HTTPProvider) {
		p.retry = cfg
	}
}

func newHTTPProvider(name, baseURL, model string, dim int, apiKey string, cache *Cache, opts []HTTPOption) (*HTTPProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s requires an API key", ErrNoProviderEnabled, name)
	}
	p := &HTTPProvider{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimension:  dim,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      cache,
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// NewJinaProvider creates a Jina AI embedder
func NewJinaProvider(apiKey string, cache *Cache, opts ...HTTPOption) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderJina, DefaultJinaBaseURL, DefaultJinaModel, JinaDimension, apiKey, cache, opts)
}

// NewOpenAIProvider creates an OpenAI embedder
func NewOpenAIProvider(apiKey string, cache *Cache, opts ...HTTPOption) (*HTTPProvider, error) {
	return newHTTPProvider(ProviderOpenAI, DefaultOpenAIBaseURL, DefaultOpenAIModel, OpenAIDimension, apiKey, cache, opts)
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	out := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		hash := ComputeHash(text)
		if p.cache != nil {
			if emb, ok := p.cache.Get(hash); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(missing))
		idx := missing[start:end]
		texts := make([]string, len(idx))
		for j, i := range idx {
			texts[j] = req.Texts[i]
		}

		vectors, err := retryWithBackoff(ctx, p.retry, func() ([][]float32, error) {
			return p.callAPI(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrProviderFailed, p.name, err)
		}

		for j, i := range idx {
			vec := vectors[j]
			p.learnDimension(len(vec))
			emb := &Embedding{
				Vector:    vec,
				Dimension: len(vec),
				Provider:  p.name,
				Model:     p.model,
				Hash:      ComputeHash(req.Texts[i]),
			}
			if p.cache != nil {
				p.cache.Set(emb.Hash, emb)
			}
			out[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   p.name,
		Model:      p.model,
	}, nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, permanent(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(err)
		}
		return nil, err
	}

	var parsed embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Data) != len(texts) {
		return nil, permanent(fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data)))
	}

	sort.Slice(parsed.Data, func(i, j int) bool { return parsed.Data[i].Index < parsed.Data[j].Index })
	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (p *HTTPProvider) learnDimension(n int) {
	p.mu.Lock()
	if p.dimension == 0 {
		p.dimension = n
	}
	p.mu.Unlock()
}

func (p *HTTPProvider) Dimension() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dimension
}

func (p *HTTPProvider) Provider() string { return p.name }
func (p *HTTPProvider) Model() string    { return p.model }

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	if p.cache != nil {
		p.cache.Clear()
	}
	return nil
}

// NormalizeVector scales vec to unit length in place
func NormalizeVector(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
