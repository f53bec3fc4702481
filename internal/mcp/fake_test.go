package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/adi-family/llm-code-indexer-mcp/internal/config"
	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// fakeEngine serves a fixed two-file project: main.go declares Helper and
// Caller (Caller calls Helper), lib/util.py declares format_name.
type fakeEngine struct {
	root    string
	symbols []engine.Symbol
	files   []engine.File
	refs    map[int64][]int64 // caller -> callees

	progress *engine.IndexProgress
	fail     error

	searchLimit int
	indexed     int
	closed      bool
}

var _ engine.Engine = (*fakeEngine)(nil)

const fakeMainSource = "package main\n\nfunc Helper() int { return 1 }\n\nfunc Caller() int { return Helper() }\n"

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte(fakeMainSource), 0o644))

	return &fakeEngine{
		root: root,
		symbols: []engine.Symbol{
			{ID: 1, Name: "Helper", Kind: types.KindFunction, Language: types.LangGo, FilePath: "main.go",
				StartLine: 3, EndLine: 3, Signature: "func Helper() int", DocComment: "Helper returns one."},
			{ID: 2, Name: "Caller", Kind: types.KindFunction, Language: types.LangGo, FilePath: "main.go",
				StartLine: 5, EndLine: 5, Signature: "func Caller() int"},
			{ID: 3, Name: "format_name", Kind: types.KindFunction, Language: types.LangPython, FilePath: "lib/util.py",
				StartLine: 1, EndLine: 2},
		},
		files: []engine.File{
			{ID: 1, Path: "lib/util.py", Language: types.LangPython, SizeBytes: 40, SymbolCount: 1},
			{ID: 2, Path: "main.go", Language: types.LangGo, SizeBytes: int64(len(fakeMainSource)), SymbolCount: 2},
		},
		refs:     map[int64][]int64{2: {1}},
		progress: &engine.IndexProgress{FilesProcessed: 2, SymbolsIndexed: 3, Errors: []string{}},
	}
}

func (f *fakeEngine) symbol(id int64) (engine.Symbol, error) {
	for _, s := range f.symbols {
		if s.ID == id {
			return s, nil
		}
	}
	return engine.Symbol{}, fmt.Errorf("symbol %d: %w", id, engine.ErrNotFound)
}

func (f *fakeEngine) Search(_ context.Context, query string, limit int) ([]engine.RankedSymbol, error) {
	f.searchLimit = limit
	if f.fail != nil {
		return nil, f.fail
	}
	out := []engine.RankedSymbol{}
	for _, s := range f.symbols {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) {
			out = append(out, engine.RankedSymbol{Symbol: s, Score: 0.5})
		}
	}
	return out, nil
}

func (f *fakeEngine) SearchSymbols(_ context.Context, query string, limit int) ([]engine.Symbol, error) {
	f.searchLimit = limit
	if f.fail != nil {
		return nil, f.fail
	}
	out := []engine.Symbol{}
	for _, s := range f.symbols {
		if strings.Contains(strings.ToLower(s.Name), strings.ToLower(query)) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeEngine) SearchFiles(_ context.Context, query string, limit int) ([]engine.File, error) {
	f.searchLimit = limit
	out := []engine.File{}
	for _, file := range f.files {
		if strings.Contains(file.Path, query) {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeEngine) GetSymbol(_ context.Context, id int64) (*engine.Symbol, error) {
	s, err := f.symbol(id)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (f *fakeEngine) GetFile(_ context.Context, path string) (*engine.FileInfo, error) {
	for _, file := range f.files {
		if file.Path == path {
			info := &engine.FileInfo{File: file, Symbols: []engine.Symbol{}}
			for _, s := range f.symbols {
				if s.FilePath == path {
					info.Symbols = append(info.Symbols, s)
				}
			}
			return info, nil
		}
	}
	return nil, fmt.Errorf("file %s: %w", path, engine.ErrNotFound)
}

func (f *fakeEngine) GetCallers(_ context.Context, id int64) ([]engine.Symbol, error) {
	if _, err := f.symbol(id); err != nil {
		return nil, err
	}
	out := []engine.Symbol{}
	for caller, callees := range f.refs {
		for _, callee := range callees {
			if callee == id {
				s, _ := f.symbol(caller)
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f *fakeEngine) GetCallees(_ context.Context, id int64) ([]engine.Symbol, error) {
	if _, err := f.symbol(id); err != nil {
		return nil, err
	}
	out := []engine.Symbol{}
	for _, callee := range f.refs[id] {
		s, _ := f.symbol(callee)
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeEngine) GetSymbolUsage(ctx context.Context, id int64) (*engine.SymbolUsage, error) {
	s, err := f.symbol(id)
	if err != nil {
		return nil, err
	}
	callers, _ := f.GetCallers(ctx, id)
	callees, _ := f.GetCallees(ctx, id)
	return &engine.SymbolUsage{Symbol: s, ReferenceCount: len(callers), Callers: callers, Callees: callees}, nil
}

func (f *fakeEngine) GetTree(context.Context) (*engine.Tree, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	tree := &engine.Tree{Files: []engine.FileNode{}}
	for _, file := range f.files {
		node := engine.FileNode{Path: file.Path, Language: file.Language, Symbols: []engine.TreeSymbol{}}
		for _, s := range f.symbols {
			if s.FilePath == file.Path {
				node.Symbols = append(node.Symbols, engine.TreeSymbol{ID: s.ID, Name: s.Name, Kind: s.Kind,
					StartLine: s.StartLine, EndLine: s.EndLine})
			}
		}
		tree.Files = append(tree.Files, node)
	}
	return tree, nil
}

func (f *fakeEngine) Index(context.Context) (*engine.IndexProgress, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.indexed++
	return f.progress, nil
}

func (f *fakeEngine) Status(context.Context) (*engine.IndexStatus, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return &engine.IndexStatus{
		ProjectPath:       f.root,
		IndexedFiles:      len(f.files),
		IndexedSymbols:    len(f.symbols),
		EmbeddingProvider: "local",
	}, nil
}

func (f *fakeEngine) FindSymbolsByName(_ context.Context, name string) ([]engine.Symbol, error) {
	out := []engine.Symbol{}
	for _, s := range f.symbols {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeEngine) Config() *config.Config {
	return &config.Config{ProjectPath: f.root, ProjectName: "fake", Index: config.DefaultProject().Index}
}

func (f *fakeEngine) ProjectPath() string { return f.root }

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

// opener records the roots it was asked to open
type opener struct {
	engines []*fakeEngine
	roots   []string
	err     error
}

func (o *opener) open(_ context.Context, root string) (engine.Engine, error) {
	o.roots = append(o.roots, root)
	if o.err != nil {
		return nil, o.err
	}
	if len(o.engines) == 0 {
		return nil, errors.New("no engine")
	}
	eng := o.engines[0]
	o.engines = o.engines[1:]
	return eng, nil
}

func newTestServer(t *testing.T, engines ...*fakeEngine) (*Server, *opener) {
	t.Helper()
	o := &opener{engines: engines}
	return NewServer(o.open, WithVersion("1.2.3")), o
}

// readyServer returns a server initialized against a fresh fake engine
func readyServer(t *testing.T) (*Server, *fakeEngine) {
	t.Helper()
	eng := newFakeEngine(t)
	s, _ := newTestServer(t, eng)
	resp := call(t, s, MethodInitialize, map[string]any{"rootUri": "file://" + eng.root})
	require.Nil(t, resp.Error)
	require.True(t, s.Ready())
	return s, eng
}

// call sends method with params (omitted when nil) and id 1
func call(t *testing.T, s *Server, method string, params any) *Response {
	t.Helper()
	req := &Request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	return s.Handle(context.Background(), req)
}

// decodeResult round-trips the response result through JSON into v
func decodeResult(t *testing.T, resp *Response, v any) {
	t.Helper()
	require.Nil(t, resp.Error, "unexpected error: %v", resp.Error)
	raw, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

// toolText returns the single text item of a tool result
func toolText(t *testing.T, resp *Response) string {
	t.Helper()
	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	decodeResult(t, resp, &result)
	require.Len(t, result.Content, 1)
	require.Equal(t, "text", result.Content[0].Type)
	return result.Content[0].Text
}

func callTool(t *testing.T, s *Server, name string, args map[string]any) *Response {
	t.Helper()
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	return call(t, s, MethodToolsCall, params)
}

func requireError(t *testing.T, resp *Response, code int, message string) {
	t.Helper()
	require.NotNil(t, resp.Error)
	require.Nil(t, resp.Result)
	require.Equal(t, code, resp.Error.Code)
	if message != "" {
		require.Equal(t, message, resp.Error.Message)
	}
}
