package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-family/llm-code-indexer-mcp/internal/config"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

const mainSource = `package main

// Helper returns one.
func Helper() int { return 1 }

func Caller() int { return Helper() }
`

const utilSource = `def format_name(name):
    return name.title()
`

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "main.go", mainSource)
	writeFile(t, root, "lib/util.py", utilSource)
	return root
}

func openEngine(t *testing.T, root string, env *config.Env) *LocalEngine {
	t.Helper()
	e, err := Open(context.Background(), root, Options{Env: env})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func indexedEngine(t *testing.T) *LocalEngine {
	t.Helper()
	e := openEngine(t, newProject(t), nil)
	_, err := e.Index(context.Background())
	require.NoError(t, err)
	return e
}

func findOne(t *testing.T, e *LocalEngine, name string) Symbol {
	t.Helper()
	matches, err := e.FindSymbolsByName(context.Background(), name)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestOpenRejectsBadRoot(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, filepath.Join(t.TempDir(), "missing"), Options{})
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.go")
	require.NoError(t, os.WriteFile(file, []byte("package x"), 0o644))
	_, err = Open(ctx, file, Options{})
	assert.ErrorContains(t, err, "is not a directory")
}

func TestOpenCreatesDatabase(t *testing.T) {
	root := newProject(t)
	e := openEngine(t, root, nil)

	assert.Equal(t, root, e.ProjectPath())
	assert.FileExists(t, filepath.Join(root, ".adi", "index.db"))
	assert.Equal(t, filepath.Join(root, ".adi", "index.db"), e.Config().DBPath)
}

func TestIndexAndStatus(t *testing.T) {
	ctx := context.Background()
	e := openEngine(t, newProject(t), nil)

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.IndexedFiles)
	assert.Nil(t, status.LastIndexedAt)

	progress, err := e.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.FilesProcessed)
	assert.Equal(t, 3, progress.SymbolsIndexed)
	assert.Empty(t, progress.Errors)

	status, err = e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, e.ProjectPath(), status.ProjectPath)
	assert.Equal(t, 2, status.IndexedFiles)
	assert.Equal(t, 3, status.IndexedSymbols)
	assert.Equal(t, 3, status.EmbeddedSymbols)
	assert.Equal(t, "local", status.EmbeddingProvider)
	assert.Positive(t, status.EmbeddingDimensions)
	assert.Positive(t, status.StorageSizeBytes)
	require.NotNil(t, status.LastIndexedAt)

	// A second run finds nothing new
	progress, err = e.Index(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.FilesProcessed)
	assert.Equal(t, 3, progress.SymbolsIndexed)
}

func TestIndexReportsParseErrors(t *testing.T) {
	root := newProject(t)
	writeFile(t, root, "broken.go", "package main\nfunc {")
	e := openEngine(t, root, nil)

	progress, err := e.Index(context.Background())
	require.NoError(t, err)
	require.Len(t, progress.Errors, 1)
	assert.Contains(t, progress.Errors[0], "broken.go")
}

func TestSymbolLookups(t *testing.T) {
	ctx := context.Background()
	e := indexedEngine(t)

	helper := findOne(t, e, "Helper")
	caller := findOne(t, e, "Caller")
	assert.Equal(t, "main.go", helper.FilePath)
	assert.Equal(t, types.LangGo, helper.Language)
	assert.Equal(t, "Helper returns one.", helper.DocComment)

	got, err := e.GetSymbol(ctx, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, helper, *got)

	_, err = e.GetSymbol(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "symbol 9999: not found")

	callers, err := e.GetCallers(ctx, helper.ID)
	require.NoError(t, err)
	require.Len(t, callers, 1)
	assert.Equal(t, caller.ID, callers[0].ID)

	callees, err := e.GetCallees(ctx, caller.ID)
	require.NoError(t, err)
	require.Len(t, callees, 1)
	assert.Equal(t, helper.ID, callees[0].ID)

	_, err = e.GetCallers(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)

	usage, err := e.GetSymbolUsage(ctx, helper.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usage.ReferenceCount)
	assert.Len(t, usage.Callers, 1)
	assert.Empty(t, usage.Callees)

	none, err := e.FindSymbolsByName(ctx, "helper")
	require.NoError(t, err)
	assert.Empty(t, none, "names match exactly")
}

func TestGetFile(t *testing.T) {
	ctx := context.Background()
	e := indexedEngine(t)

	for _, path := range []string{"main.go", "./main.go", filepath.Join(e.ProjectPath(), "main.go")} {
		info, err := e.GetFile(ctx, path)
		require.NoError(t, err, path)
		assert.Equal(t, "main.go", info.File.Path)
		assert.Equal(t, 2, info.File.SymbolCount)
		require.Len(t, info.Symbols, 2)
		assert.Equal(t, "Helper", info.Symbols[0].Name)
	}

	_, err := e.GetFile(ctx, "nope.go")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetTree(t *testing.T) {
	e := indexedEngine(t)

	tree, err := e.GetTree(context.Background())
	require.NoError(t, err)
	require.Len(t, tree.Files, 2)
	assert.Equal(t, "lib/util.py", tree.Files[0].Path)
	assert.Equal(t, types.LangPython, tree.Files[0].Language)
	assert.Equal(t, "main.go", tree.Files[1].Path)
	require.Len(t, tree.Files[1].Symbols, 2)
	assert.Equal(t, "Helper", tree.Files[1].Symbols[0].Name)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	e := indexedEngine(t)

	results, err := e.Search(ctx, "helper", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Helper", results[0].Symbol.Name)
	assert.Positive(t, results[0].Score)

	symbols, err := e.SearchSymbols(ctx, "format", 5)
	require.NoError(t, err)
	require.NotEmpty(t, symbols)
	assert.Equal(t, "format_name", symbols[0].Name)

	files, err := e.SearchFiles(ctx, "util", 5)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "lib/util.py", files[0].Path)
}

func TestProjectDefaultSearchLimit(t *testing.T) {
	ctx := context.Background()
	root := newProject(t)
	writeFile(t, root, ".adi/config.toml", "[search]\ndefault_limit = 1\n")
	e := openEngine(t, root, nil)
	_, err := e.Index(ctx)
	require.NoError(t, err)

	files, err := e.SearchFiles(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	files, err = e.SearchFiles(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestIndexInvalidatesSearchCache(t *testing.T) {
	ctx := context.Background()
	root := newProject(t)
	e := openEngine(t, root, nil)
	_, err := e.Index(ctx)
	require.NoError(t, err)

	results, err := e.Search(ctx, "render", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "Render", r.Symbol.Name)
	}

	writeFile(t, root, "render.go", "package main\n\nfunc Render() {}\n")
	_, err = e.Index(ctx)
	require.NoError(t, err)

	results, err = e.Search(ctx, "render", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "Render", results[0].Symbol.Name)
}

func TestReopenKeepsIndex(t *testing.T) {
	ctx := context.Background()
	root := newProject(t)

	first, err := Open(ctx, root, Options{})
	require.NoError(t, err)
	_, err = first.Index(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	require.NoError(t, first.Close())

	second := openEngine(t, root, nil)
	status, err := second.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.IndexedFiles)
}

func TestWatchReindexes(t *testing.T) {
	ctx := context.Background()
	root := newProject(t)
	e := openEngine(t, root, &config.Env{Watch: true})
	_, err := e.Index(ctx)
	require.NoError(t, err)

	writeFile(t, root, "extra.go", "package main\n\nfunc Extra() {}\n")

	assert.Eventually(t, func() bool {
		matches, err := e.FindSymbolsByName(ctx, "Extra")
		return err == nil && len(matches) == 1
	}, 10*time.Second, 50*time.Millisecond)
}

func TestNewOpener(t *testing.T) {
	open := NewOpener(Options{})

	e, err := open(context.Background(), newProject(t))
	require.NoError(t, err)
	assert.NoError(t, e.Close())

	_, err = open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
