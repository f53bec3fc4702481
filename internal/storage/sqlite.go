package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrNestedTx is returned by BeginTx on a transaction
	ErrNestedTx = errors.New("nested transactions not supported")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	*queries
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// A single connection serializes writers and keeps :memory: databases
	// alive for the lifetime of the handle.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the database at dbPath and applies
// pending migrations.
func NewSQLiteStorage(ctx context.Context, dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{queries: &queries{q: db}, db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction. Every operation on the returned Tx runs
// on the transaction's connection.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{queries: &queries{q: tx}, tx: tx}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	*queries
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) Close() error {
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, ErrNestedTx
}

// queries holds every statement; it runs against either the database or a
// transaction.
type queries struct {
	q querier
}

type rowScanner interface {
	Scan(dest ...any) error
}

func unixOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

func fromUnix(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(v.Int64, 0)
}

// Project operations

func (s *queries) CreateProject(ctx context.Context, project *Project) error {
	query := `
		INSERT INTO projects (root_path, name, index_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	now := time.Now()
	if project.IndexVersion == "" {
		project.IndexVersion = CurrentSchemaVersion
	}
	result, err := s.q.ExecContext(ctx, query,
		project.RootPath, project.Name, project.IndexVersion, now.Unix(), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	project.ID = id
	project.CreatedAt = now
	project.UpdatedAt = now
	return nil
}

const projectColumns = `id, root_path, name, index_version, last_indexed_at, created_at, updated_at`

func scanProject(row rowScanner) (*Project, error) {
	var (
		project              Project
		lastIndexed          sql.NullInt64
		createdAt, updatedAt int64
	)
	err := row.Scan(&project.ID, &project.RootPath, &project.Name, &project.IndexVersion,
		&lastIndexed, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	project.LastIndexedAt = fromUnix(lastIndexed)
	project.CreatedAt = time.Unix(createdAt, 0)
	project.UpdatedAt = time.Unix(updatedAt, 0)
	return &project, nil
}

func (s *queries) GetProject(ctx context.Context, rootPath string) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE root_path = ?`
	return scanProject(s.q.QueryRowContext(ctx, query, rootPath))
}

func (s *queries) getProjectByID(ctx context.Context, projectID int64) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = ?`
	return scanProject(s.q.QueryRowContext(ctx, query, projectID))
}

func (s *queries) UpdateProject(ctx context.Context, project *Project) error {
	query := `
		UPDATE projects
		SET name = ?, index_version = ?, last_indexed_at = ?, updated_at = ?
		WHERE id = ?
	`
	now := time.Now()
	_, err := s.q.ExecContext(ctx, query,
		project.Name, project.IndexVersion, unixOrNull(project.LastIndexedAt), now.Unix(), project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	project.UpdatedAt = now
	return nil
}

// File operations

// UpsertFile inserts or updates the file row keyed by (project, path) and
// sets file.ID.
func (s *queries) UpsertFile(ctx context.Context, file *File) error {
	query := `
		INSERT INTO files (project_id, path, language, content_hash, size_bytes, mod_time, parse_error, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, path) DO UPDATE SET
			language = excluded.language,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			mod_time = excluded.mod_time,
			parse_error = excluded.parse_error,
			indexed_at = excluded.indexed_at
		RETURNING id
	`
	now := time.Now()
	err := s.q.QueryRowContext(ctx, query,
		file.ProjectID, file.Path, string(file.Language), int64(file.ContentHash),
		file.SizeBytes, unixOrNull(file.ModTime), file.ParseError, now.Unix(),
	).Scan(&file.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", file.Path, err)
	}
	file.IndexedAt = now
	return nil
}

const fileColumns = `f.id, f.project_id, f.path, f.language, f.content_hash, f.size_bytes,
	f.mod_time, f.parse_error, f.indexed_at,
	(SELECT COUNT(*) FROM symbols s WHERE s.file_id = f.id)`

func scanFile(row rowScanner) (*File, error) {
	var (
		file      File
		language  string
		hash      int64
		modTime   sql.NullInt64
		indexedAt int64
	)
	err := row.Scan(&file.ID, &file.ProjectID, &file.Path, &language, &hash, &file.SizeBytes,
		&modTime, &file.ParseError, &indexedAt, &file.SymbolCount)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	file.Language = types.Language(language)
	file.ContentHash = uint64(hash)
	file.ModTime = fromUnix(modTime)
	file.IndexedAt = time.Unix(indexedAt, 0)
	return &file, nil
}

func (s *queries) GetFile(ctx context.Context, projectID int64, path string) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.project_id = ? AND f.path = ?`
	return scanFile(s.q.QueryRowContext(ctx, query, projectID, path))
}

func (s *queries) GetFileByID(ctx context.Context, fileID int64) (*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.id = ?`
	return scanFile(s.q.QueryRowContext(ctx, query, fileID))
}

func (s *queries) DeleteFile(ctx context.Context, fileID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	return err
}

// ListFiles returns the project's files ordered by path
func (s *queries) ListFiles(ctx context.Context, projectID int64) ([]*File, error) {
	query := `SELECT ` + fileColumns + ` FROM files f WHERE f.project_id = ? ORDER BY f.path`
	rows, err := s.q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make([]*File, 0)
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// Symbol operations

func (s *queries) InsertSymbol(ctx context.Context, symbol *Symbol) error {
	query := `
		INSERT INTO symbols (file_id, name, terms, kind, signature, doc_comment, parent,
		                     start_line, start_col, end_line, end_col)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	terms := strings.Join(types.SplitIdentifier(symbol.Name), " ")
	if symbol.Parent != "" {
		terms += " " + strings.Join(types.SplitIdentifier(symbol.Parent), " ")
	}
	result, err := s.q.ExecContext(ctx, query,
		symbol.FileID, symbol.Name, terms, string(symbol.Kind), symbol.Signature,
		symbol.DocComment, symbol.Parent,
		symbol.StartLine, symbol.StartCol, symbol.EndLine, symbol.EndCol)
	if err != nil {
		return fmt.Errorf("failed to insert symbol %s: %w", symbol.Name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	symbol.ID = id
	return nil
}

const symbolColumns = `s.id, s.file_id, f.path, f.language, s.name, s.kind, s.signature,
	s.doc_comment, s.parent, s.start_line, s.start_col, s.end_line, s.end_col`

func scanSymbol(row rowScanner) (*Symbol, error) {
	var (
		sym            Symbol
		language, kind string
	)
	err := row.Scan(&sym.ID, &sym.FileID, &sym.FilePath, &language, &sym.Name, &kind,
		&sym.Signature, &sym.DocComment, &sym.Parent,
		&sym.StartLine, &sym.StartCol, &sym.EndLine, &sym.EndCol)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sym.Language = types.Language(language)
	sym.Kind = types.SymbolKind(kind)
	return &sym, nil
}

func (s *queries) listSymbols(ctx context.Context, query string, args ...any) ([]*Symbol, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	symbols := make([]*Symbol, 0)
	for rows.Next() {
		sym, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *queries) GetSymbol(ctx context.Context, symbolID int64) (*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE s.id = ?`
	return scanSymbol(s.q.QueryRowContext(ctx, query, symbolID))
}

func (s *queries) ListSymbolsByFile(ctx context.Context, fileID int64) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE s.file_id = ?
		ORDER BY s.start_line, s.start_col, s.id`
	return s.listSymbols(ctx, query, fileID)
}

// ListSymbolsByProject returns every symbol ordered by file path then line
func (s *queries) ListSymbolsByProject(ctx context.Context, projectID int64) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ?
		ORDER BY f.path, s.start_line, s.start_col, s.id`
	return s.listSymbols(ctx, query, projectID)
}

func (s *queries) FindSymbolsByName(ctx context.Context, projectID int64, name string) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE f.project_id = ? AND s.name = ?
		ORDER BY f.path, s.start_line, s.id`
	return s.listSymbols(ctx, query, projectID, name)
}

func (s *queries) DeleteSymbolsByFile(ctx context.Context, fileID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM symbols WHERE file_id = ?`, fileID)
	return err
}

// Reference graph operations

func (s *queries) InsertReference(ctx context.Context, ref *Reference) error {
	query := `
		INSERT INTO refs (file_id, caller_symbol_id, callee_name, callee_symbol_id, line)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.q.ExecContext(ctx, query,
		ref.FileID, ref.CallerID, ref.CalleeName, ref.CalleeID, ref.Line)
	if err != nil {
		return fmt.Errorf("failed to insert reference %s: %w", ref.CalleeName, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	ref.ID = id
	return nil
}

// ResolveReferences points every reference of the project at a symbol with
// the callee's name, preferring one declared in the caller's own file.
// Data-only declarations (fields, variables, constants, modules) are never
// call targets.
func (s *queries) ResolveReferences(ctx context.Context, projectID int64) (int, error) {
	query := `
		UPDATE refs SET callee_symbol_id = (
			SELECT s.id FROM symbols s JOIN files f ON s.file_id = f.id
			WHERE f.project_id = ?
			  AND s.name = refs.callee_name
			  AND s.kind NOT IN ('field', 'variable', 'constant', 'module')
			ORDER BY (s.file_id = refs.file_id) DESC, f.path, s.start_line
			LIMIT 1
		)
		WHERE file_id IN (SELECT id FROM files WHERE project_id = ?)
	`
	if _, err := s.q.ExecContext(ctx, query, projectID, projectID); err != nil {
		return 0, fmt.Errorf("failed to resolve references: %w", err)
	}

	var resolved int
	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM refs r JOIN files f ON r.file_id = f.id
		WHERE f.project_id = ? AND r.callee_symbol_id IS NOT NULL
	`, projectID).Scan(&resolved)
	return resolved, err
}

// ListCallers returns the distinct symbols whose bodies reference symbolID
func (s *queries) ListCallers(ctx context.Context, symbolID int64) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE s.id IN (SELECT caller_symbol_id FROM refs WHERE callee_symbol_id = ?)
		ORDER BY f.path, s.start_line, s.id`
	return s.listSymbols(ctx, query, symbolID)
}

// ListCallees returns the distinct resolved symbols referenced from symbolID
func (s *queries) ListCallees(ctx context.Context, symbolID int64) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s JOIN files f ON s.file_id = f.id
		WHERE s.id IN (SELECT callee_symbol_id FROM refs WHERE caller_symbol_id = ? AND callee_symbol_id IS NOT NULL)
		ORDER BY f.path, s.start_line, s.id`
	return s.listSymbols(ctx, query, symbolID)
}

// CountReferences counts resolved reference rows pointing at symbolID
func (s *queries) CountReferences(ctx context.Context, symbolID int64) (int, error) {
	var count int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refs WHERE callee_symbol_id = ?`, symbolID).Scan(&count)
	return count, err
}

// Import operations

func (s *queries) InsertImport(ctx context.Context, imp *Import) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO imports (file_id, path, alias) VALUES (?, ?, ?)`,
		imp.FileID, imp.Path, imp.Alias)
	if err != nil {
		return fmt.Errorf("failed to insert import: %w", err)
	}
	id, err := result.LastInsertId()
	if err == nil {
		imp.ID = id
	}
	return nil
}

func (s *queries) ListImportsByFile(ctx context.Context, fileID int64) ([]*Import, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, file_id, path, alias FROM imports WHERE file_id = ? ORDER BY path`, fileID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	imports := make([]*Import, 0)
	for rows.Next() {
		var imp Import
		if err := rows.Scan(&imp.ID, &imp.FileID, &imp.Path, &imp.Alias); err != nil {
			return nil, err
		}
		imports = append(imports, &imp)
	}
	return imports, rows.Err()
}

// Embedding operations

func (s *queries) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (symbol_id, vector, dimension, provider, model, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at
	`
	now := time.Now()
	_, err := s.q.ExecContext(ctx, query,
		embedding.SymbolID, serializeVector(embedding.Vector), len(embedding.Vector),
		embedding.Provider, embedding.Model, int64(embedding.ContentHash), now.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.Dimension = len(embedding.Vector)
	embedding.CreatedAt = now
	return nil
}

func (s *queries) GetEmbedding(ctx context.Context, symbolID int64) (*Embedding, error) {
	query := `
		SELECT symbol_id, vector, dimension, provider, model, content_hash, created_at
		FROM embeddings
		WHERE symbol_id = ?
	`
	var (
		embedding Embedding
		blob      []byte
		hash      int64
		createdAt int64
	)
	err := s.q.QueryRowContext(ctx, query, symbolID).Scan(
		&embedding.SymbolID, &blob, &embedding.Dimension,
		&embedding.Provider, &embedding.Model, &hash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	embedding.Vector = deserializeVector(blob)
	embedding.ContentHash = uint64(hash)
	embedding.CreatedAt = time.Unix(createdAt, 0)
	return &embedding, nil
}

// DeleteStaleEmbeddings removes the project's embeddings produced by another
// provider or model so they get recomputed.
func (s *queries) DeleteStaleEmbeddings(ctx context.Context, projectID int64, provider, model string) (int, error) {
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM embeddings
		WHERE (provider != ? OR model != ?)
		  AND symbol_id IN (
			SELECT s.id FROM symbols s JOIN files f ON s.file_id = f.id WHERE f.project_id = ?
		  )
	`, provider, model, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// ListSymbolsWithoutEmbedding returns up to limit symbols that have no vector
func (s *queries) ListSymbolsWithoutEmbedding(ctx context.Context, projectID int64, limit int) ([]*Symbol, error) {
	query := `SELECT ` + symbolColumns + `
		FROM symbols s
		JOIN files f ON s.file_id = f.id
		LEFT JOIN embeddings e ON e.symbol_id = s.id
		WHERE f.project_id = ? AND e.symbol_id IS NULL
		ORDER BY s.id
		LIMIT ?`
	return s.listSymbols(ctx, query, projectID, limit)
}

// Status operations

func (s *queries) GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error) {
	project, err := s.getProjectByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	status := &ProjectStatus{
		Project:       project,
		LastIndexedAt: project.LastIndexedAt,
	}

	counts := []struct {
		dest  *int
		query string
	}{
		{&status.FilesCount, `SELECT COUNT(*) FROM files WHERE project_id = ?`},
		{&status.SymbolsCount, `
			SELECT COUNT(*) FROM symbols s JOIN files f ON s.file_id = f.id
			WHERE f.project_id = ?`},
		{&status.ReferencesCount, `
			SELECT COUNT(*) FROM refs r JOIN files f ON r.file_id = f.id
			WHERE f.project_id = ?`},
		{&status.EmbeddingsCount, `
			SELECT COUNT(*) FROM embeddings e
			JOIN symbols s ON e.symbol_id = s.id
			JOIN files f ON s.file_id = f.id
			WHERE f.project_id = ?`},
	}
	for _, c := range counts {
		if err := s.q.QueryRowContext(ctx, c.query, projectID).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int64
	if err := s.q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeBytes = pageCount * pageSize
	}

	return status, nil
}
