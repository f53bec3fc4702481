package engine

import (
	"time"

	"github.com/adi-family/llm-code-indexer-mcp/internal/storage"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// Symbol is a declaration as exposed to protocol clients
type Symbol struct {
	ID         int64            `json:"id"`
	Name       string           `json:"name"`
	Kind       types.SymbolKind `json:"kind"`
	Language   types.Language   `json:"language"`
	FilePath   string           `json:"file_path"`
	StartLine  int              `json:"start_line"`
	EndLine    int              `json:"end_line"`
	Signature  string           `json:"signature,omitempty"`
	DocComment string           `json:"doc_comment,omitempty"`
	Parent     string           `json:"parent,omitempty"`
}

// RankedSymbol is a search hit
type RankedSymbol struct {
	Symbol Symbol  `json:"symbol"`
	Score  float64 `json:"score"`
}

// File is an indexed file
type File struct {
	ID          int64          `json:"id"`
	Path        string         `json:"path"`
	Language    types.Language `json:"language"`
	SizeBytes   int64          `json:"size_bytes"`
	SymbolCount int            `json:"symbol_count"`
}

// FileInfo is a file with its symbols in source order
type FileInfo struct {
	File    File     `json:"file"`
	Symbols []Symbol `json:"symbols"`
}

// TreeSymbol is the compact symbol form used in the tree
type TreeSymbol struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Kind      types.SymbolKind `json:"kind"`
	StartLine int              `json:"start_line"`
	EndLine   int              `json:"end_line"`
}

// FileNode is one file of the tree
type FileNode struct {
	Path     string         `json:"path"`
	Language types.Language `json:"language"`
	Symbols  []TreeSymbol   `json:"symbols"`
}

// Tree lists every indexed file ordered by path
type Tree struct {
	Files []FileNode `json:"files"`
}

// SymbolUsage summarizes the reference graph around a symbol
type SymbolUsage struct {
	Symbol         Symbol   `json:"symbol"`
	ReferenceCount int      `json:"reference_count"`
	Callers        []Symbol `json:"callers"`
	Callees        []Symbol `json:"callees"`
}

// IndexProgress reports one indexing run
type IndexProgress struct {
	FilesProcessed int      `json:"files_processed"`
	SymbolsIndexed int      `json:"symbols_indexed"`
	Errors         []string `json:"errors"`
}

// IndexStatus describes the current index
type IndexStatus struct {
	ProjectPath         string     `json:"project_path"`
	IndexedFiles        int        `json:"indexed_files"`
	IndexedSymbols      int        `json:"indexed_symbols"`
	IndexedReferences   int        `json:"indexed_references"`
	EmbeddedSymbols     int        `json:"embedded_symbols"`
	EmbeddingProvider   string     `json:"embedding_provider"`
	EmbeddingModel      string     `json:"embedding_model"`
	EmbeddingDimensions int        `json:"embedding_dimensions"`
	StorageSizeBytes    int64      `json:"storage_size_bytes"`
	LastIndexedAt       *time.Time `json:"last_indexed_at"`
}

func toSymbol(s *storage.Symbol) Symbol {
	return Symbol{
		ID:         s.ID,
		Name:       s.Name,
		Kind:       s.Kind,
		Language:   s.Language,
		FilePath:   s.FilePath,
		StartLine:  s.StartLine,
		EndLine:    s.EndLine,
		Signature:  s.Signature,
		DocComment: s.DocComment,
		Parent:     s.Parent,
	}
}

func toSymbols(in []*storage.Symbol) []Symbol {
	out := make([]Symbol, len(in))
	for i, s := range in {
		out[i] = toSymbol(s)
	}
	return out
}

func toFile(f *storage.File) File {
	return File{
		ID:          f.ID,
		Path:        f.Path,
		Language:    f.Language,
		SizeBytes:   f.SizeBytes,
		SymbolCount: f.SymbolCount,
	}
}
