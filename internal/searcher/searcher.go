package searcher

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hbollon/go-edlib"
	"github.com/sahilm/fuzzy"
	"golang.org/x/sync/errgroup"

	"github.com/adi-family/llm-code-indexer-mcp/internal/embedder"
	"github.com/adi-family/llm-code-indexer-mcp/internal/storage"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + BM25 with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

const (
	DefaultLimit     = 10
	MaxLimit         = 100
	DefaultRRFK      = 60
	DefaultCacheSize = 1000
	DefaultCacheTTL  = time.Hour

	// candidate pool multiplier for each side of a hybrid search
	fanOut = 3
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	ProjectID int64
	Query     string
	Limit     int
	Mode      SearchMode
	Filters   *storage.SearchFilters
}

// Result is a ranked symbol
type Result struct {
	Symbol *storage.Symbol
	Score  float64
	Rank   int
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []Result
	SearchMode    SearchMode
	Duration      time.Duration
	CacheHit      bool
	VectorResults int
	TextResults   int
	// VectorErr is set when the semantic side of a hybrid search failed and
	// results come from keyword search alone.
	VectorErr error
}

// Searcher coordinates search operations across vector and text search
type Searcher struct {
	storage  storage.Storage
	embedder embedder.Embedder
	cache    *expirable.LRU[uint64, *SearchResponse]
	rrfK     float64
	// defaultLimit replaces a limit <= 0
	defaultLimit int
}

// Option customizes a Searcher
type Option func(*settings)

type settings struct {
	cacheSize    int
	cacheTTL     time.Duration
	rrfK         float64
	defaultLimit int
}

// WithCache sets the result cache size and TTL. A size of 0 keeps defaults.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *settings) {
		if size > 0 {
			s.cacheSize = size
		}
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRRFConstant sets k in 1/(k+rank)
func WithRRFConstant(k float64) Option {
	return func(s *settings) {
		if k > 0 {
			s.rrfK = k
		}
	}
}

// WithDefaultLimit sets the result count used when a request's limit is 0
// or negative. Values above MaxLimit are capped; n <= 0 keeps DefaultLimit.
func WithDefaultLimit(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.defaultLimit = min(n, MaxLimit)
		}
	}
}

// New creates a Searcher. emb may be nil, in which case every search is a
// keyword search.
func New(store storage.Storage, emb embedder.Embedder, opts ...Option) *Searcher {
	cfg := settings{cacheSize: DefaultCacheSize, cacheTTL: DefaultCacheTTL, rrfK: DefaultRRFK, defaultLimit: DefaultLimit}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Searcher{
		storage:  store,
		embedder: emb,
		cache:    expirable.NewLRU[uint64, *SearchResponse](cfg.cacheSize, nil, cfg.cacheTTL),
		rrfK:     cfg.rrfK,

		defaultLimit: cfg.defaultLimit,
	}
}

// Search runs a ranked search. An empty query yields no results.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	s.normalize(&req)
	if req.Mode != SearchModeKeyword && s.embedder == nil {
		req.Mode = SearchModeKeyword
	}

	if req.Query == "" {
		return &SearchResponse{Results: []Result{}, SearchMode: req.Mode}, nil
	}

	key := cacheKey(req)
	if cached, ok := s.cache.Get(key); ok {
		resp := copyResponse(cached)
		resp.CacheHit = true
		resp.Duration = time.Since(start)
		return resp, nil
	}

	var (
		resp *SearchResponse
		err  error
	)
	switch req.Mode {
	case SearchModeHybrid:
		resp, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		resp, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		resp, err = s.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", req.Mode)
	}
	if err != nil {
		return nil, err
	}

	resp.SearchMode = req.Mode
	resp.Duration = time.Since(start)
	if resp.VectorErr == nil {
		s.cache.Add(key, copyResponse(resp))
	}
	return resp, nil
}

// Purge drops all cached results. Called after every re-index.
func (s *Searcher) Purge() {
	s.cache.Purge()
}

// CacheLen reports the number of cached responses
func (s *Searcher) CacheLen() int {
	return s.cache.Len()
}

func (s *Searcher) normalize(req *SearchRequest) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Limit <= 0 {
		req.Limit = s.defaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Mode == "" {
		req.Mode = SearchModeHybrid
	}
}

func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var (
		vectorResults []storage.VectorResult
		textResults   []storage.TextResult
		vectorErr     error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// A failing embedder degrades to keyword search instead of failing
		vectorResults, vectorErr = s.searchVector(gctx, req, req.Limit*fanOut)
		return nil
	})
	g.Go(func() error {
		var err error
		textResults, err = s.storage.SearchText(gctx, req.ProjectID, req.Query, req.Limit*fanOut, req.Filters)
		if err != nil {
			return fmt.Errorf("text search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := fuseRRF(vectorResults, textResults, s.rrfK)
	results, err := s.fetchResults(ctx, fused, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{
		Results:       results,
		VectorResults: len(vectorResults),
		TextResults:   len(textResults),
		VectorErr:     vectorErr,
	}, nil
}

func (s *Searcher) searchVector(ctx context.Context, req SearchRequest, limit int) ([]storage.VectorResult, error) {
	emb, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: req.Query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return s.storage.SearchVector(ctx, req.ProjectID, emb.Vector, limit, req.Filters)
}

func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vectorResults, err := s.searchVector(ctx, req, req.Limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(vectorResults))
	for i, vr := range vectorResults {
		ranked[i] = rankedResult{symbolID: vr.SymbolID, score: vr.SimilarityScore}
	}
	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{Results: results, VectorResults: len(vectorResults)}, nil
}

func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	textResults, err := s.storage.SearchText(ctx, req.ProjectID, req.Query, req.Limit, req.Filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(textResults))
	for i, tr := range textResults {
		ranked[i] = rankedResult{symbolID: tr.SymbolID, score: tr.BM25Score}
	}
	results, err := s.fetchResults(ctx, ranked, req.Limit)
	if err != nil {
		return nil, err
	}

	return &SearchResponse{Results: results, TextResults: len(textResults)}, nil
}

// rankedResult represents a symbol with its relevance score
type rankedResult struct {
	symbolID int64
	score    float64
}

// fuseRRF merges two rankings with Reciprocal Rank Fusion:
// RRF(d) = sum over lists of 1/(k + rank(d))
func fuseRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult, k float64) []rankedResult {
	if k <= 0 {
		k = DefaultRRFK
	}

	scores := make(map[int64]float64, len(vectorResults)+len(textResults))
	for rank, vr := range vectorResults {
		scores[vr.SymbolID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textResults {
		scores[tr.SymbolID] += 1.0 / (k + float64(rank+1))
	}

	results := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, rankedResult{symbolID: id, score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].symbolID < results[j].symbolID
	})
	return results
}

// fetchResults loads the top limit symbols. Symbols deleted since ranking
// are skipped.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) ([]Result, error) {
	results := make([]Result, 0, min(limit, len(ranked)))
	for _, rr := range ranked {
		if len(results) == limit {
			break
		}
		sym, err := s.storage.GetSymbol(ctx, rr.symbolID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		results = append(results, Result{Symbol: sym, Score: rr.score, Rank: len(results) + 1})
	}
	return results, nil
}

// SearchSymbols finds symbols by name. Candidates from prefix and substring
// matching are reranked by Jaro-Winkler similarity to the query.
func (s *Searcher) SearchSymbols(ctx context.Context, projectID int64, query string, limit int) ([]*storage.Symbol, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*storage.Symbol{}, nil
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	candidates, err := s.storage.SearchSymbolNames(ctx, projectID, query, max(limit*5, 50))
	if err != nil {
		return nil, err
	}

	type scored struct {
		sym   *storage.Symbol
		score float64
	}
	lq := strings.ToLower(query)
	ranked := make([]scored, 0, len(candidates))
	for _, sym := range candidates {
		ranked = append(ranked, scored{sym: sym, score: nameScore(lq, strings.ToLower(sym.Name))})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]*storage.Symbol, 0, min(limit, len(ranked)))
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, r.sym)
	}
	return out, nil
}

// nameScore ranks exact matches first, then prefixes, then by similarity
func nameScore(query, name string) float64 {
	sim, err := edlib.StringsSimilarity(query, name, edlib.JaroWinkler)
	if err != nil {
		sim = 0
	}
	score := float64(sim)
	switch {
	case name == query:
		score += 2
	case strings.HasPrefix(name, query):
		score += 1
	}
	return score
}

// SearchFiles fuzzy-matches query against indexed file paths, best first.
// An empty query lists files by path.
func (s *Searcher) SearchFiles(ctx context.Context, projectID int64, query string, limit int) ([]*storage.File, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	files, err := s.storage.ListFiles(ctx, projectID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return files[:min(limit, len(files))], nil
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	matches := fuzzy.Find(query, paths)

	out := make([]*storage.File, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, files[m.Index])
	}
	return out, nil
}

func cacheKey(req SearchRequest) uint64 {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(req.ProjectID, 10))
	b.WriteByte('|')
	b.WriteString(string(req.Mode))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(req.Limit))
	b.WriteByte('|')
	b.WriteString(req.Query)
	if f := req.Filters; f != nil {
		b.WriteString("|k:")
		for _, k := range f.Kinds {
			b.WriteString(string(k))
			b.WriteByte(',')
		}
		b.WriteString("|l:")
		for _, l := range f.Languages {
			b.WriteString(string(l))
			b.WriteByte(',')
		}
		b.WriteString("|p:")
		b.WriteString(f.FilePattern)
		b.WriteString("|r:")
		b.WriteString(strconv.FormatFloat(f.MinRelevance, 'f', 4, 64))
	}
	return xxhash.Sum64String(b.String())
}

func copyResponse(src *SearchResponse) *SearchResponse {
	dst := *src
	dst.Results = make([]Result, len(src.Results))
	for i, r := range src.Results {
		dst.Results[i] = r
		if r.Symbol != nil {
			sym := *r.Symbol
			dst.Results[i].Symbol = &sym
		}
	}
	return &dst
}
