// Package engine is the code index behind the protocol layer. It owns the
// SQLite store, indexer, searcher and optional file watcher of one project.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/adi-family/llm-code-indexer-mcp/internal/config"
	"github.com/adi-family/llm-code-indexer-mcp/internal/embedder"
	"github.com/adi-family/llm-code-indexer-mcp/internal/indexer"
	"github.com/adi-family/llm-code-indexer-mcp/internal/searcher"
	"github.com/adi-family/llm-code-indexer-mcp/internal/storage"
	"github.com/adi-family/llm-code-indexer-mcp/internal/watcher"
)

// ErrNotFound is wrapped by lookups of unknown symbols and files
var ErrNotFound = errors.New("not found")

// Engine is the set of index operations the protocol layer consumes
type Engine interface {
	Search(ctx context.Context, query string, limit int) ([]RankedSymbol, error)
	SearchSymbols(ctx context.Context, query string, limit int) ([]Symbol, error)
	SearchFiles(ctx context.Context, query string, limit int) ([]File, error)
	GetSymbol(ctx context.Context, id int64) (*Symbol, error)
	GetFile(ctx context.Context, path string) (*FileInfo, error)
	GetCallers(ctx context.Context, id int64) ([]Symbol, error)
	GetCallees(ctx context.Context, id int64) ([]Symbol, error)
	GetSymbolUsage(ctx context.Context, id int64) (*SymbolUsage, error)
	GetTree(ctx context.Context) (*Tree, error)
	Index(ctx context.Context) (*IndexProgress, error)
	Status(ctx context.Context) (*IndexStatus, error)
	FindSymbolsByName(ctx context.Context, name string) ([]Symbol, error)
	Config() *config.Config
	ProjectPath() string
	Close() error
}

// Opener opens an engine for a project root
type Opener func(ctx context.Context, root string) (Engine, error)

// Options customizes Open
type Options struct {
	Env    *config.Env
	Logger *zap.Logger
	// Embedder replaces the provider chosen from configuration
	Embedder embedder.Embedder
}

// NewOpener returns an Opener that calls Open with opts
func NewOpener(opts Options) Opener {
	return func(ctx context.Context, root string) (Engine, error) {
		e, err := Open(ctx, root, opts)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

// LocalEngine implements Engine over a SQLite database
type LocalEngine struct {
	root     string
	cfg      *config.Config
	store    storage.Storage
	project  *storage.Project
	embedder embedder.Embedder
	searcher *searcher.Searcher
	indexer  *indexer.Indexer
	watcher  *watcher.Watcher
	logger   *zap.Logger

	// indexMu serializes index runs from tools and the watcher
	indexMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Open prepares the index for root. It does not index.
func Open(ctx context.Context, root string, opts Options) (*LocalEngine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", abs)
	}

	cfg, err := config.Resolve(abs, opts.Env)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	project, err := loadProject(ctx, store, abs, cfg.ProjectName)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	emb := opts.Embedder
	if emb == nil {
		emb, err = embedder.New(embedder.Config{
			Provider:  cfg.Embedding.Provider,
			Model:     cfg.Embedding.Model,
			BaseURL:   cfg.Embedding.BaseURL,
			OpenAIKey: cfg.Embedding.OpenAIKey,
			JinaKey:   cfg.Embedding.JinaKey,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
	}

	e := &LocalEngine{
		root:     abs,
		cfg:      cfg,
		store:    store,
		project:  project,
		embedder: emb,
		searcher: searcher.New(store, emb, searcher.WithDefaultLimit(cfg.Search.DefaultLimit)),
		indexer:  indexer.New(store, emb, logger.Named("indexer")),
		logger:   logger,
	}

	if cfg.Watch {
		w, err := watcher.New(abs, cfg.Index, e.reindex, logger.Named("watcher"))
		if err != nil {
			_ = e.Close()
			return nil, fmt.Errorf("failed to start watcher: %w", err)
		}
		w.Start()
		e.watcher = w
	}

	logger.Info("engine opened",
		zap.String("root", abs),
		zap.String("db", cfg.DBPath),
		zap.String("embedding_provider", emb.Provider()),
		zap.Bool("watch", cfg.Watch),
	)
	return e, nil
}

func loadProject(ctx context.Context, store storage.Storage, root, name string) (*storage.Project, error) {
	project, err := store.GetProject(ctx, root)
	if errors.Is(err, storage.ErrNotFound) {
		project = &storage.Project{RootPath: root, Name: name, IndexVersion: storage.CurrentSchemaVersion}
		if err := store.CreateProject(ctx, project); err != nil {
			return nil, fmt.Errorf("failed to create project: %w", err)
		}
		return project, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project.Name != name {
		project.Name = name
		if err := store.UpdateProject(ctx, project); err != nil {
			return nil, fmt.Errorf("failed to update project: %w", err)
		}
	}
	return project, nil
}

// Search runs a hybrid keyword and semantic symbol search.
func (e *LocalEngine) Search(ctx context.Context, query string, limit int) ([]RankedSymbol, error) {
	resp, err := e.searcher.Search(ctx, searcher.SearchRequest{
		ProjectID: e.project.ID,
		Query:     query,
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}
	if resp.VectorErr != nil {
		e.logger.Warn("semantic search unavailable", zap.Error(resp.VectorErr))
	}

	out := make([]RankedSymbol, len(resp.Results))
	for i, r := range resp.Results {
		out[i] = RankedSymbol{Symbol: toSymbol(r.Symbol), Score: r.Score}
	}
	return out, nil
}

// SearchSymbols matches symbols by name.
func (e *LocalEngine) SearchSymbols(ctx context.Context, query string, limit int) ([]Symbol, error) {
	symbols, err := e.searcher.SearchSymbols(ctx, e.project.ID, query, limit)
	if err != nil {
		return nil, err
	}
	return toSymbols(symbols), nil
}

// SearchFiles matches indexed files by path.
func (e *LocalEngine) SearchFiles(ctx context.Context, query string, limit int) ([]File, error) {
	files, err := e.searcher.SearchFiles(ctx, e.project.ID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]File, len(files))
	for i, f := range files {
		out[i] = toFile(f)
	}
	return out, nil
}

// GetSymbol returns the symbol with id or ErrNotFound.
func (e *LocalEngine) GetSymbol(ctx context.Context, id int64) (*Symbol, error) {
	sym, err := e.lookupSymbol(ctx, id)
	if err != nil {
		return nil, err
	}
	out := toSymbol(sym)
	return &out, nil
}

func (e *LocalEngine) lookupSymbol(ctx context.Context, id int64) (*storage.Symbol, error) {
	sym, err := e.store.GetSymbol(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("symbol %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sym, nil
}

// GetFile returns an indexed file with its symbols or ErrNotFound.
func (e *LocalEngine) GetFile(ctx context.Context, path string) (*FileInfo, error) {
	rel := e.relPath(path)
	file, err := e.store.GetFile(ctx, e.project.ID, rel)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	symbols, err := e.store.ListSymbolsByFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}
	file.SymbolCount = len(symbols)
	return &FileInfo{File: toFile(file), Symbols: toSymbols(symbols)}, nil
}

// relPath turns a client supplied path into the stored slash separated form
func (e *LocalEngine) relPath(path string) string {
	p := filepath.FromSlash(path)
	if filepath.IsAbs(p) {
		if rel, err := filepath.Rel(e.root, p); err == nil && !strings.HasPrefix(rel, "..") {
			p = rel
		}
	}
	return filepath.ToSlash(filepath.Clean(p))
}

// GetCallers lists symbols that reference id.
func (e *LocalEngine) GetCallers(ctx context.Context, id int64) ([]Symbol, error) {
	if _, err := e.lookupSymbol(ctx, id); err != nil {
		return nil, err
	}
	callers, err := e.store.ListCallers(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSymbols(callers), nil
}

// GetCallees lists symbols referenced by id.
func (e *LocalEngine) GetCallees(ctx context.Context, id int64) ([]Symbol, error) {
	if _, err := e.lookupSymbol(ctx, id); err != nil {
		return nil, err
	}
	callees, err := e.store.ListCallees(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSymbols(callees), nil
}

// GetSymbolUsage reports the reference count, callers and callees of a symbol.
func (e *LocalEngine) GetSymbolUsage(ctx context.Context, id int64) (*SymbolUsage, error) {
	sym, err := e.lookupSymbol(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := e.store.CountReferences(ctx, id)
	if err != nil {
		return nil, err
	}
	callers, err := e.store.ListCallers(ctx, id)
	if err != nil {
		return nil, err
	}
	callees, err := e.store.ListCallees(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SymbolUsage{
		Symbol:         toSymbol(sym),
		ReferenceCount: count,
		Callers:        toSymbols(callers),
		Callees:        toSymbols(callees),
	}, nil
}

// GetTree groups indexed files and their symbols by path.
func (e *LocalEngine) GetTree(ctx context.Context) (*Tree, error) {
	files, err := e.store.ListFiles(ctx, e.project.ID)
	if err != nil {
		return nil, err
	}
	symbols, err := e.store.ListSymbolsByProject(ctx, e.project.ID)
	if err != nil {
		return nil, err
	}

	byFile := make(map[int64][]TreeSymbol, len(files))
	for _, s := range symbols {
		byFile[s.FileID] = append(byFile[s.FileID], TreeSymbol{
			ID:        s.ID,
			Name:      s.Name,
			Kind:      s.Kind,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
		})
	}

	tree := &Tree{Files: make([]FileNode, len(files))}
	for i, f := range files {
		syms := byFile[f.ID]
		if syms == nil {
			syms = []TreeSymbol{}
		}
		tree.Files[i] = FileNode{Path: f.Path, Language: f.Language, Symbols: syms}
	}
	return tree, nil
}

// Index walks the project and refreshes changed files.
func (e *LocalEngine) Index(ctx context.Context) (*IndexProgress, error) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	stats, err := e.indexer.IndexProject(ctx, e.project, &indexer.Config{
		Workers: e.cfg.Workers,
		Index:   e.cfg.Index,
	})
	e.searcher.Purge()
	if err != nil {
		return nil, err
	}

	progress := &IndexProgress{
		FilesProcessed: stats.FilesProcessed,
		SymbolsIndexed: stats.SymbolsIndexed,
		Errors:         stats.ErrorMessages,
	}
	if progress.Errors == nil {
		progress.Errors = []string{}
	}
	return progress, nil
}

// reindex is the watcher callback
func (e *LocalEngine) reindex(ctx context.Context, changed []string) {
	e.logger.Debug("re-indexing after change", zap.Strings("paths", changed))
	if _, err := e.Index(ctx); err != nil && ctx.Err() == nil {
		e.logger.Error("re-index failed", zap.Error(err))
	}
}

// Status reports index counts and the last index time.
func (e *LocalEngine) Status(ctx context.Context) (*IndexStatus, error) {
	st, err := e.store.GetStatus(ctx, e.project.ID)
	if err != nil {
		return nil, err
	}

	status := &IndexStatus{
		ProjectPath:         e.root,
		IndexedFiles:        st.FilesCount,
		IndexedSymbols:      st.SymbolsCount,
		IndexedReferences:   st.ReferencesCount,
		EmbeddedSymbols:     st.EmbeddingsCount,
		EmbeddingProvider:   e.embedder.Provider(),
		EmbeddingModel:      e.embedder.Model(),
		EmbeddingDimensions: e.embedder.Dimension(),
		StorageSizeBytes:    st.SizeBytes,
	}
	if !st.LastIndexedAt.IsZero() {
		t := st.LastIndexedAt.UTC()
		status.LastIndexedAt = &t
	}
	return status, nil
}

// FindSymbolsByName returns symbols whose name equals name.
func (e *LocalEngine) FindSymbolsByName(ctx context.Context, name string) ([]Symbol, error) {
	symbols, err := e.store.FindSymbolsByName(ctx, e.project.ID, name)
	if err != nil {
		return nil, err
	}
	return toSymbols(symbols), nil
}

// Config returns the resolved project configuration.
func (e *LocalEngine) Config() *config.Config {
	return e.cfg
}

// ProjectPath returns the absolute project root.
func (e *LocalEngine) ProjectPath() string {
	return e.root
}

// Close stops the watcher and releases the store. Safe to call twice.
func (e *LocalEngine) Close() error {
	e.closeOnce.Do(func() {
		if e.watcher != nil {
			e.closeErr = e.watcher.Close()
		}
		e.closeErr = errors.Join(e.closeErr, e.embedder.Close(), e.store.Close())
	})
	return e.closeErr
}
