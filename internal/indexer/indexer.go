package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adi-family/llm-code-indexer-mcp/internal/chunker"
	"github.com/adi-family/llm-code-indexer-mcp/internal/config"
	"github.com/adi-family/llm-code-indexer-mcp/internal/embedder"
	"github.com/adi-family/llm-code-indexer-mcp/internal/parser"
	"github.com/adi-family/llm-code-indexer-mcp/internal/storage"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// ErrIndexingInProgress is returned when another run holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

const (
	DefaultBatchSize      = 20
	DefaultEmbedBatchSize = 64
)

// Indexer coordinates the indexing pipeline:
// discover -> hash -> parse -> store -> resolve -> embed
type Indexer struct {
	parser   *parser.Parser
	chunker  *chunker.Chunker
	storage  storage.Storage
	embedder embedder.Embedder
	logger   *zap.Logger
	lock     IndexLock
}

// Config contains configuration for one indexing run
type Config struct {
	Workers        int // Concurrent parsers (default: runtime.NumCPU())
	BatchSize      int // Files committed per transaction (default: 20)
	EmbedBatchSize int // Symbols per embedding request (default: 64)
	Index          config.IndexConfig
}

// Statistics summarizes one indexing run
type Statistics struct {
	FilesProcessed     int // Files discovered and checked
	FilesIndexed       int // Files (re)parsed and stored
	FilesSkipped       int // Files whose fingerprint was unchanged
	FilesFailed        int
	FilesRemoved       int
	SymbolsIndexed     int // Symbols held by the processed files
	ReferencesResolved int
	SymbolsEmbedded    int
	Duration           time.Duration
	ErrorMessages      []string // "path: message"
}

// New creates an Indexer. emb may be nil to skip embedding.
func New(store storage.Storage, emb embedder.Embedder, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		parser:   parser.New(),
		chunker:  chunker.New(),
		storage:  store,
		embedder: emb,
		logger:   logger,
	}
}

// discovered is a candidate file found by the walk
type discovered struct {
	abs     string
	rel     string // slash separated
	lang    types.Language
	size    int64
	modTime time.Time
}

// parsed is the outcome of checking one discovered file
type parsed struct {
	file     discovered
	hash     uint64
	existing *storage.File
	result   *types.ParseResult
	err      error
	skip     bool
}

// IndexProject incrementally indexes the project rooted at project.RootPath
func (idx *Indexer) IndexProject(ctx context.Context, project *storage.Project, cfg *Config) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}

	start := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	files, err := discoverFiles(project.RootPath, &cfg.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	stats.FilesProcessed = len(files)

	existing, err := idx.existingFiles(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	results, err := idx.parseFiles(ctx, files, existing, cfg.Workers)
	if err != nil {
		return nil, err
	}

	if err := idx.storeResults(ctx, project, results, cfg.BatchSize, stats); err != nil {
		return nil, err
	}

	if err := idx.removeVanished(ctx, files, existing, stats); err != nil {
		return nil, err
	}

	resolved, err := idx.storage.ResolveReferences(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve references: %w", err)
	}
	stats.ReferencesResolved = resolved

	if idx.embedder != nil {
		embedded, err := idx.embedMissing(ctx, project, cfg.EmbedBatchSize)
		stats.SymbolsEmbedded = embedded
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			idx.logger.Warn("embedding failed", zap.Error(err))
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("embeddings: %v", err))
		}
	}

	project.LastIndexedAt = time.Now()
	project.IndexVersion = storage.CurrentSchemaVersion
	if err := idx.storage.UpdateProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	stats.Duration = time.Since(start)
	idx.logger.Info("index complete",
		zap.String("root", project.RootPath),
		zap.Int("files", stats.FilesProcessed),
		zap.Int("indexed", stats.FilesIndexed),
		zap.Int("skipped", stats.FilesSkipped),
		zap.Int("removed", stats.FilesRemoved),
		zap.Int("symbols", stats.SymbolsIndexed),
		zap.Int("embedded", stats.SymbolsEmbedded),
		zap.Int("errors", len(stats.ErrorMessages)),
		zap.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// discoverFiles walks root and returns the files that pass the filters,
// sorted by relative path.
func discoverFiles(root string, filters *config.IndexConfig) ([]discovered, error) {
	var files []discovered

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			// Unreadable entries are skipped
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if filters.Excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || filters.Excluded(rel) || !filters.Included(rel) {
			return nil
		}

		lang := types.DetectLanguage(rel)
		if !filters.AllowsLanguage(lang) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if filters.MaxFileSize > 0 && info.Size() > filters.MaxFileSize {
			return nil
		}

		files = append(files, discovered{
			abs:     path,
			rel:     rel,
			lang:    lang,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})

	return files, err
}

func (idx *Indexer) existingFiles(ctx context.Context, projectID int64) (map[string]*storage.File, error) {
	files, err := idx.storage.ListFiles(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list indexed files: %w", err)
	}
	byPath := make(map[string]*storage.File, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}
	return byPath, nil
}

// parseFiles hashes every file and parses the changed ones in parallel.
// Results keep the order of files.
func (idx *Indexer) parseFiles(ctx context.Context, files []discovered, existing map[string]*storage.File, workers int) ([]parsed, error) {
	results := make([]parsed, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = idx.parseOne(gctx, files[i], existing[files[i].rel])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (idx *Indexer) parseOne(ctx context.Context, file discovered, existing *storage.File) parsed {
	out := parsed{file: file, existing: existing}

	content, err := os.ReadFile(file.abs)
	if err != nil {
		out.err = err
		return out
	}
	out.hash = xxhash.Sum64(content)

	if existing != nil && existing.ContentHash == out.hash && existing.Language == file.lang {
		out.skip = true
		return out
	}

	out.result, out.err = idx.parser.Parse(ctx, file.rel, content)
	return out
}

// storeResults writes changed files in transactions of batchSize files
func (idx *Indexer) storeResults(ctx context.Context, project *storage.Project, results []parsed, batchSize int, stats *Statistics) error {
	var pending []parsed
	for _, r := range results {
		switch {
		case r.skip:
			stats.FilesSkipped++
			stats.SymbolsIndexed += r.existing.SymbolCount
		case r.err != nil:
			stats.FilesFailed++
			stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", r.file.rel, r.err))
			idx.logger.Warn("failed to index file", zap.String("path", r.file.rel), zap.Error(r.err))
		default:
			pending = append(pending, r)
		}
	}

	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		if err := idx.storeBatch(ctx, project, pending[start:end], stats); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Indexer) storeBatch(ctx context.Context, project *storage.Project, batch []parsed, stats *Statistics) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	symbols := 0
	var messages []string
	for _, r := range batch {
		n, err := storeFile(ctx, tx, project.ID, r)
		if err != nil {
			return fmt.Errorf("failed to store %s: %w", r.file.rel, err)
		}
		symbols += n
		if r.result.HasErrors() {
			messages = append(messages, fmt.Sprintf("%s: %s", r.file.rel, r.result.Errors[0].Message))
		}
		idx.logger.Debug("indexed file", zap.String("path", r.file.rel), zap.Int("symbols", n))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.FilesIndexed += len(batch)
	stats.SymbolsIndexed += symbols
	stats.ErrorMessages = append(stats.ErrorMessages, messages...)
	return nil
}

// storeFile replaces the file's rows with the parse result. Deleting the old
// row cascades to its symbols, references, imports and embeddings.
func storeFile(ctx context.Context, tx storage.Tx, projectID int64, r parsed) (int, error) {
	if r.existing != nil {
		if err := tx.DeleteFile(ctx, r.existing.ID); err != nil {
			return 0, err
		}
	}

	file := &storage.File{
		ProjectID:   projectID,
		Path:        r.file.rel,
		Language:    r.file.lang,
		ContentHash: r.hash,
		SizeBytes:   r.file.size,
		ModTime:     r.file.modTime,
	}
	if r.result.HasErrors() {
		file.ParseError = r.result.Errors[0].Message
	}
	if err := tx.UpsertFile(ctx, file); err != nil {
		return 0, err
	}

	ids := make([]int64, len(r.result.Symbols))
	for i := range r.result.Symbols {
		sym := storage.FromTypesSymbol(r.result.Symbols[i], file.ID)
		if err := tx.InsertSymbol(ctx, sym); err != nil {
			return 0, err
		}
		ids[i] = sym.ID
	}

	for _, ref := range r.result.References {
		// File scope calls have no caller symbol to hang the edge on
		if ref.Caller < 0 || ref.Caller >= len(ids) {
			continue
		}
		if err := tx.InsertReference(ctx, &storage.Reference{
			FileID:     file.ID,
			CallerID:   ids[ref.Caller],
			CalleeName: ref.Name,
			Line:       ref.Line,
		}); err != nil {
			return 0, err
		}
	}

	for _, imp := range r.result.Imports {
		if err := tx.InsertImport(ctx, &storage.Import{FileID: file.ID, Path: imp.Path, Alias: imp.Alias}); err != nil {
			return 0, err
		}
	}

	return len(ids), nil
}

// removeVanished deletes stored files that were not discovered this run
func (idx *Indexer) removeVanished(ctx context.Context, files []discovered, existing map[string]*storage.File, stats *Statistics) error {
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		seen[f.rel] = true
	}

	var gone []*storage.File
	for path, f := range existing {
		if !seen[path] {
			gone = append(gone, f)
		}
	}
	if len(gone) == 0 {
		return nil
	}

	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, f := range gone {
		if err := tx.DeleteFile(ctx, f.ID); err != nil {
			return fmt.Errorf("failed to remove %s: %w", f.Path, err)
		}
		idx.logger.Debug("removed file", zap.String("path", f.Path))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	stats.FilesRemoved = len(gone)
	return nil
}

// embedMissing embeds every symbol of the project without a vector from the
// current provider and model.
func (idx *Indexer) embedMissing(ctx context.Context, project *storage.Project, batchSize int) (int, error) {
	if _, err := idx.storage.DeleteStaleEmbeddings(ctx, project.ID, idx.embedder.Provider(), idx.embedder.Model()); err != nil {
		return 0, err
	}

	embedded := 0
	for {
		symbols, err := idx.storage.ListSymbolsWithoutEmbedding(ctx, project.ID, batchSize)
		if err != nil {
			return embedded, err
		}
		if len(symbols) == 0 {
			return embedded, nil
		}

		docs := idx.buildDocuments(project.RootPath, symbols)
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Text
		}

		resp, err := idx.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return embedded, err
		}

		tx, err := idx.storage.BeginTx(ctx)
		if err != nil {
			return embedded, err
		}
		for i, emb := range resp.Embeddings {
			if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
				SymbolID:    docs[i].SymbolID,
				Vector:      emb.Vector,
				Provider:    resp.Provider,
				Model:       resp.Model,
				ContentHash: docs[i].ContentHash,
			}); err != nil {
				_ = tx.Rollback()
				return embedded, err
			}
		}
		if err := tx.Commit(); err != nil {
			return embedded, err
		}
		embedded += len(resp.Embeddings)
	}
}

// buildDocuments reads each owning file once and builds the symbol documents
func (idx *Indexer) buildDocuments(root string, symbols []*storage.Symbol) []chunker.Document {
	lines := make(map[string][]string)
	docs := make([]chunker.Document, len(symbols))
	for i, sym := range symbols {
		l, ok := lines[sym.FilePath]
		if !ok {
			if content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(sym.FilePath))); err == nil {
				l = strings.Split(string(content), "\n")
			}
			lines[sym.FilePath] = l
		}
		docs[i] = idx.chunker.Build(sym, l)
	}
	return docs
}
