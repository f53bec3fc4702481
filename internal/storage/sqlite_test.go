package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(context.Background(), ":memory:")
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func setupProject(t *testing.T, store *SQLiteStorage) *Project {
	t.Helper()
	project := &Project{RootPath: "/test/path", Name: "demo"}
	require.NoError(t, store.CreateProject(context.Background(), project))
	return project
}

func addFile(t *testing.T, store Storage, projectID int64, path string, lang types.Language) *File {
	t.Helper()
	file := &File{ProjectID: projectID, Path: path, Language: lang, ContentHash: 42, SizeBytes: 100}
	require.NoError(t, store.UpsertFile(context.Background(), file))
	return file
}

func addSymbol(t *testing.T, store Storage, fileID int64, name string, kind types.SymbolKind, start, end int) *Symbol {
	t.Helper()
	sym := &Symbol{FileID: fileID, Name: name, Kind: kind, StartLine: start, EndLine: end}
	require.NoError(t, store.InsertSymbol(context.Background(), sym))
	return sym
}

func TestNewSQLiteStorage_FileDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "index.db")

	store, err := NewSQLiteStorage(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening applies no migration twice
	store, err = NewSQLiteStorage(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestCreateProject(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	project := setupProject(t, store)
	assert.Greater(t, project.ID, int64(0))
	assert.Equal(t, CurrentSchemaVersion, project.IndexVersion)

	duplicate := &Project{RootPath: "/test/path"}
	assert.Error(t, store.CreateProject(ctx, duplicate))
}

func TestGetProject(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)

	retrieved, err := store.GetProject(ctx, "/test/path")
	require.NoError(t, err)
	assert.Equal(t, project.ID, retrieved.ID)
	assert.Equal(t, "demo", retrieved.Name)
	assert.True(t, retrieved.LastIndexedAt.IsZero())

	_, err = store.GetProject(ctx, "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProject(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)

	indexedAt := time.Unix(1_700_000_000, 0)
	project.LastIndexedAt = indexedAt
	require.NoError(t, store.UpdateProject(ctx, project))

	retrieved, err := store.GetProject(ctx, project.RootPath)
	require.NoError(t, err)
	assert.Equal(t, indexedAt.Unix(), retrieved.LastIndexedAt.Unix())
}

func TestUpsertFile(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)

	file := addFile(t, store, project.ID, "src/main.rs", types.LangRust)
	require.Greater(t, file.ID, int64(0))

	// Same path updates in place and keeps the id
	again := &File{ProjectID: project.ID, Path: "src/main.rs", Language: types.LangRust, ContentHash: 1 << 63, SizeBytes: 7}
	require.NoError(t, store.UpsertFile(ctx, again))
	assert.Equal(t, file.ID, again.ID)

	retrieved, err := store.GetFile(ctx, project.ID, "src/main.rs")
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<63), retrieved.ContentHash, "full uint64 range survives the round trip")
	assert.Equal(t, int64(7), retrieved.SizeBytes)
	assert.Equal(t, types.LangRust, retrieved.Language)

	_, err = store.GetFile(ctx, project.ID, "nope.rs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListFiles_SymbolCount(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)

	b := addFile(t, store, project.ID, "b.py", types.LangPython)
	addFile(t, store, project.ID, "a.go", types.LangGo)
	addSymbol(t, store, b.ID, "one", types.KindFunction, 1, 2)
	addSymbol(t, store, b.ID, "two", types.KindFunction, 3, 4)

	files, err := store.ListFiles(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.go", files[0].Path)
	assert.Equal(t, 0, files[0].SymbolCount)
	assert.Equal(t, "b.py", files[1].Path)
	assert.Equal(t, 2, files[1].SymbolCount)
}

func TestSymbols(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)
	file := addFile(t, store, project.ID, "lib.rs", types.LangRust)

	sym := &Symbol{
		FileID:     file.ID,
		Name:       "new",
		Kind:       types.KindMethod,
		Parent:     "Store",
		Signature:  "pub fn new() -> Self",
		DocComment: "Creates an empty store.",
		StartLine:  10,
		EndLine:    12,
	}
	require.NoError(t, store.InsertSymbol(ctx, sym))

	got, err := store.GetSymbol(ctx, sym.ID)
	require.NoError(t, err)
	assert.Equal(t, "lib.rs", got.FilePath)
	assert.Equal(t, types.LangRust, got.Language)
	assert.Equal(t, "Store", got.Parent)
	assert.Equal(t, types.KindMethod, got.Kind)

	_, err = store.GetSymbol(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := store.FindSymbolsByName(ctx, project.ID, "new")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, sym.ID, found[0].ID)

	require.NoError(t, store.DeleteSymbolsByFile(ctx, file.ID))
	byFile, err := store.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Empty(t, byFile)
}

func TestReferenceGraph(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)

	a := addFile(t, store, project.ID, "a.go", types.LangGo)
	b := addFile(t, store, project.ID, "b.go", types.LangGo)

	caller := addSymbol(t, store, a.ID, "run", types.KindFunction, 1, 10)
	localHelper := addSymbol(t, store, a.ID, "helper", types.KindFunction, 12, 14)
	remoteHelper := addSymbol(t, store, b.ID, "helper", types.KindFunction, 1, 3)
	addSymbol(t, store, b.ID, "config", types.KindVar, 5, 5)

	for _, ref := range []*Reference{
		{FileID: a.ID, CallerID: caller.ID, CalleeName: "helper", Line: 2},
		{FileID: a.ID, CallerID: caller.ID, CalleeName: "helper", Line: 3},
		{FileID: a.ID, CallerID: caller.ID, CalleeName: "config", Line: 4},
		{FileID: a.ID, CallerID: caller.ID, CalleeName: "Println", Line: 5},
	} {
		require.NoError(t, store.InsertReference(ctx, ref))
	}

	resolved, err := store.ResolveReferences(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, resolved)

	callees, err := store.ListCallees(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, callees, 1, "distinct callees")
	assert.Equal(t, localHelper.ID, callees[0].ID, "same file wins")

	callers, err := store.ListCallers(ctx, localHelper.ID)
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, caller.ID, callers[0].ID)

	count, err := store.CountReferences(ctx, localHelper.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Removing the local helper re-resolves to the other file
	require.NoError(t, store.DeleteSymbolsByFile(ctx, a.ID))
	caller = addSymbol(t, store, a.ID, "run", types.KindFunction, 1, 10)
	require.NoError(t, store.InsertReference(ctx, &Reference{FileID: a.ID, CallerID: caller.ID, CalleeName: "helper", Line: 2}))
	_, err = store.ResolveReferences(ctx, project.ID)
	require.NoError(t, err)

	callees, err = store.ListCallees(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, remoteHelper.ID, callees[0].ID)
}

func TestDeleteFile_Cascades(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)
	file := addFile(t, store, project.ID, "a.py", types.LangPython)
	sym := addSymbol(t, store, file.ID, "parse_config", types.KindFunction, 1, 5)
	require.NoError(t, store.UpsertEmbedding(ctx, &Embedding{SymbolID: sym.ID, Vector: []float32{1, 0}, Provider: "local", Model: "m"}))
	require.NoError(t, store.InsertImport(ctx, &Import{FileID: file.ID, Path: "os"}))

	require.NoError(t, store.DeleteFile(ctx, file.ID))

	_, err := store.GetSymbol(ctx, sym.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetEmbedding(ctx, sym.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	results, err := store.SearchText(ctx, project.ID, "parse", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "FTS rows are removed with the symbol")
}

func TestImports(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)
	file := addFile(t, store, project.ID, "a.go", types.LangGo)

	require.NoError(t, store.InsertImport(ctx, &Import{FileID: file.ID, Path: "strings"}))
	require.NoError(t, store.InsertImport(ctx, &Import{FileID: file.ID, Path: "fmt", Alias: "f"}))

	imports, err := store.ListImportsByFile(ctx, file.ID)
	require.NoError(t, err)
	require.Len(t, imports, 2)
	assert.Equal(t, "fmt", imports[0].Path)
	assert.Equal(t, "f", imports[0].Alias)
}

func TestEmbeddings(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)
	file := addFile(t, store, project.ID, "a.go", types.LangGo)
	first := addSymbol(t, store, file.ID, "First", types.KindFunction, 1, 2)
	second := addSymbol(t, store, file.ID, "Second", types.KindFunction, 3, 4)

	missing, err := store.ListSymbolsWithoutEmbedding(ctx, project.ID, 10)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	emb := &Embedding{SymbolID: first.ID, Vector: []float32{0.5, 0.25, -1}, Provider: "local", Model: "hash-384", ContentHash: 9}
	require.NoError(t, store.UpsertEmbedding(ctx, emb))

	got, err := store.GetEmbedding(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, -1}, got.Vector)
	assert.Equal(t, 3, got.Dimension)
	assert.Equal(t, uint64(9), got.ContentHash)

	missing, err = store.ListSymbolsWithoutEmbedding(ctx, project.ID, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, second.ID, missing[0].ID)

	removed, err := store.DeleteStaleEmbeddings(ctx, project.ID, "openai", "text-embedding-3-small")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestTransaction(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)

	tx, err := store.BeginTx(ctx)
	require.NoError(t, err)

	file := addFile(t, tx, project.ID, "tx.go", types.LangGo)
	addSymbol(t, tx, file.ID, "InTx", types.KindFunction, 1, 1)

	// Reads inside the transaction see its own writes
	symbols, err := tx.ListSymbolsByFile(ctx, file.ID)
	require.NoError(t, err)
	assert.Len(t, symbols, 1)

	_, err = tx.BeginTx(ctx)
	assert.ErrorIs(t, err, ErrNestedTx)

	require.NoError(t, tx.Rollback())

	_, err = store.GetFile(ctx, project.ID, "tx.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStatus(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	project := setupProject(t, store)
	file := addFile(t, store, project.ID, "a.go", types.LangGo)
	caller := addSymbol(t, store, file.ID, "A", types.KindFunction, 1, 3)
	addSymbol(t, store, file.ID, "B", types.KindFunction, 4, 6)
	require.NoError(t, store.InsertReference(ctx, &Reference{FileID: file.ID, CallerID: caller.ID, CalleeName: "B", Line: 2}))
	require.NoError(t, store.UpsertEmbedding(ctx, &Embedding{SymbolID: caller.ID, Vector: []float32{1}, Provider: "local", Model: "m"}))

	status, err := store.GetStatus(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.FilesCount)
	assert.Equal(t, 2, status.SymbolsCount)
	assert.Equal(t, 1, status.ReferencesCount)
	assert.Equal(t, 1, status.EmbeddingsCount)
	assert.Greater(t, status.SizeBytes, int64(0))

	_, err = store.GetStatus(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRollbackMigration(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, store.db))
	v, err := currentVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v.String())

	require.NoError(t, ApplyMigrations(ctx, store.db))
	v, err = currentVersion(ctx, store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v.String())
}
