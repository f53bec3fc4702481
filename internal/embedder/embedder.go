package embedder

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

const defaultCacheSize = 10000

// Embedding is one symbol document's vector. Hash is the xxhash of the
// embedded text and keys the cache.
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      uint64
}

func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = slices.Clone(e.Vector)
	return &out
}

type EmbeddingRequest struct {
	Text string
}

type BatchEmbeddingRequest struct {
	Texts []string
}

// BatchEmbeddingResponse holds one embedding per requested text, in order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns symbol documents into vectors. Implementations must be
// safe for concurrent use by the indexer and searcher.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	// GenerateBatch preserves input order
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)
	// Dimension is 0 until a remote provider has answered once
	Dimension() int
	Provider() string
	Model() string
	Close() error
}

// Cache keeps recently computed embeddings keyed by text hash. Callers get
// copies, so cached vectors are never mutated.
type Cache struct {
	entries *lru.Cache[uint64, *Embedding]
}

// NewCache returns a cache holding up to size entries; size <= 0 means the
// default of 10000
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	entries, err := lru.New[uint64, *Embedding](size)
	if err != nil {
		panic(fmt.Sprintf("embedding cache: %v", err))
	}
	return &Cache{entries: entries}
}

func (c *Cache) Get(hash uint64) (*Embedding, bool) {
	emb, ok := c.entries.Get(hash)
	if !ok {
		return nil, false
	}
	return emb.clone(), true
}

func (c *Cache) Set(hash uint64, emb *Embedding) {
	c.entries.Add(hash, emb.clone())
}

func (c *Cache) Size() int {
	return c.entries.Len()
}

func (c *Cache) Clear() {
	c.entries.Purge()
}

// ComputeHash fingerprints text for the cache and the embeddings table
func ComputeHash(text string) uint64 {
	return xxhash.Sum64String(text)
}

func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if i := slices.Index(req.Texts, ""); i >= 0 {
		return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
	}
	return nil
}
