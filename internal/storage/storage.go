package storage

import (
	"context"
	"time"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed code data
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, path string) (*File, error)
	GetFileByID(ctx context.Context, fileID int64) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Symbol operations
	InsertSymbol(ctx context.Context, symbol *Symbol) error
	GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error)
	ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error)
	ListSymbolsByProject(ctx context.Context, projectID int64) ([]*Symbol, error)
	FindSymbolsByName(ctx context.Context, projectID int64, name string) ([]*Symbol, error)
	DeleteSymbolsByFile(ctx context.Context, fileID int64) error

	// Reference graph operations
	InsertReference(ctx context.Context, ref *Reference) error
	ResolveReferences(ctx context.Context, projectID int64) (resolved int, err error)
	ListCallers(ctx context.Context, symbolID int64) ([]*Symbol, error)
	ListCallees(ctx context.Context, symbolID int64) ([]*Symbol, error)
	CountReferences(ctx context.Context, symbolID int64) (int, error)

	// Import operations
	InsertImport(ctx context.Context, imp *Import) error
	ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, symbolID int64) (*Embedding, error)
	DeleteStaleEmbeddings(ctx context.Context, projectID int64, provider, model string) (int, error)
	ListSymbolsWithoutEmbedding(ctx context.Context, projectID int64, limit int) ([]*Symbol, error)

	// Search operations
	SearchVector(ctx context.Context, projectID int64, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)
	SearchText(ctx context.Context, projectID int64, query string, limit int, filters *SearchFilters) ([]TextResult, error)
	SearchSymbolNames(ctx context.Context, projectID int64, query string, limit int) ([]*Symbol, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage
}

// Project represents an indexed source tree
type Project struct {
	ID            int64
	RootPath      string
	Name          string
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source file
type File struct {
	ID          int64
	ProjectID   int64
	Path        string // Relative to project root, slash separated
	Language    types.Language
	ContentHash uint64 // xxhash of the file content
	SizeBytes   int64
	ModTime     time.Time
	ParseError  string
	IndexedAt   time.Time

	// SymbolCount is computed on read
	SymbolCount int
}

// Symbol represents a stored declaration. FilePath and Language are joined
// from the owning file on read.
type Symbol struct {
	ID         int64
	FileID     int64
	FilePath   string
	Language   types.Language
	Name       string
	Kind       types.SymbolKind
	Signature  string
	DocComment string
	Parent     string
	StartLine  int
	StartCol   int
	EndLine    int
	EndCol     int
}

// Reference is one call site. CalleeID is set once the name resolves to a
// symbol of the same project.
type Reference struct {
	ID         int64
	FileID     int64
	CallerID   int64
	CalleeName string
	CalleeID   *int64
	Line       int
}

// Import represents an import statement in a file
type Import struct {
	ID     int64
	FileID int64
	Path   string
	Alias  string
}

// Embedding is the vector for one symbol's embedding document
type Embedding struct {
	SymbolID    int64
	Vector      []float32
	Dimension   int
	Provider    string
	Model       string
	ContentHash uint64
	CreatedAt   time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	Kinds        []types.SymbolKind
	Languages    []types.Language
	FilePattern  string // SQLite GLOB over the relative path
	MinRelevance float64
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	SymbolID        int64
	SimilarityScore float64
}

// TextResult represents a result from full-text search
type TextResult struct {
	SymbolID  int64
	BM25Score float64
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project         *Project
	FilesCount      int
	SymbolsCount    int
	ReferencesCount int
	EmbeddingsCount int
	SizeBytes       int64
	LastIndexedAt   time.Time
}

// FromTypesSymbol converts a parsed symbol into a storage row for fileID
func FromTypesSymbol(s types.Symbol, fileID int64) *Symbol {
	return &Symbol{
		FileID:     fileID,
		Name:       s.Name,
		Kind:       s.Kind,
		Signature:  s.Signature,
		DocComment: s.DocComment,
		Parent:     s.Parent,
		StartLine:  s.Start.Line,
		StartCol:   s.Start.Column,
		EndLine:    s.End.Line,
		EndCol:     s.End.Column,
	}
}
