package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	assert.Equal(t, ComputeHash("func main() {}"), ComputeHash("func main() {}"))
	assert.NotEqual(t, ComputeHash("a"), ComputeHash("b"))
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
}

func TestValidateBatchRequest(t *testing.T) {
	assert.NoError(t, ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", "b"}}))
	assert.ErrorIs(t, ValidateBatchRequest(BatchEmbeddingRequest{}), ErrInvalidInput)

	err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: []string{"a", ""}})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "index 1")
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set(1, &Embedding{Vector: []float32{1, 2}, Dimension: 2})

		got, ok := cache.Get(1)
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get(1)
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set(1, &Embedding{})
		cache.Set(2, &Embedding{})
		_, _ = cache.Get(1)
		cache.Set(3, &Embedding{})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get(2)
		assert.False(t, ok)
		_, ok = cache.Get(1)
		assert.True(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set(1, &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	provider := mustNewLocalProvider(t)

	t.Run("unit length and deterministic", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "parseConfigFile"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "parseConfigFile"})
		require.NoError(t, err)

		assert.Len(t, a.Vector, LocalDimension)
		assert.Equal(t, a.Vector, b.Vector)
		assert.InDelta(t, 1.0, norm(a.Vector), 1e-4)
		assert.Equal(t, ProviderLocal, a.Provider)
		assert.Equal(t, LocalModel, a.Model)
	})

	t.Run("shared vocabulary scores higher", func(t *testing.T) {
		query, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "load config"})
		require.NoError(t, err)
		related, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func LoadConfig(path string) (*Config, error)"})
		require.NoError(t, err)
		unrelated, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func renderTriangle(mesh *Mesh)"})
		require.NoError(t, err)

		assert.Greater(t, dot(query.Vector, related.Vector), dot(query.Vector, unrelated.Vector))
	})

	t.Run("batch keeps order", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"alpha", "beta"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, ComputeHash("alpha"), resp.Embeddings[0].Hash)
		assert.Equal(t, ComputeHash("beta"), resp.Embeddings[1].Hash)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := provider.GenerateEmbedding(cctx, EmbeddingRequest{Text: "uncached text"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	vec := []float32{3, 4}
	NormalizeVector(vec)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	zero := []float32{0, 0}
	NormalizeVector(zero)
	assert.Equal(t, []float32{0, 0}, zero)
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func mustNewLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(NewCache(100))
	require.NoError(t, err)
	return p
}
