package mcp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
)

func TestToolsList(t *testing.T) {
	s, _ := newTestServer(t)

	var result struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			InputSchema struct {
				Type       string                     `json:"type"`
				Properties map[string]json.RawMessage `json:"properties"`
				Required   []string                   `json:"required"`
			} `json:"inputSchema"`
		} `json:"tools"`
	}
	decodeResult(t, call(t, s, MethodToolsList, nil), &result)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
	}
	assert.Equal(t, []string{
		"search", "search_symbols", "search_files", "get_symbol", "get_file",
		"get_callers", "get_callees", "get_symbol_usage", "get_tree", "index", "status",
	}, names)

	search := result.Tools[0]
	assert.Equal(t, []string{"query"}, search.InputSchema.Required)
	assert.Contains(t, search.InputSchema.Properties, "limit")

	getSymbol := result.Tools[3]
	assert.Equal(t, []string{"id"}, getSymbol.InputSchema.Required)
}

func TestToolsCall_Errors(t *testing.T) {
	t.Run("not initialized", func(t *testing.T) {
		s, _ := newTestServer(t)
		resp := callTool(t, s, ToolSearch, map[string]any{"query": "x"})
		requireError(t, resp, ErrorCodeInternalError, "ADI not initialized. Call initialize first.")
	})

	t.Run("missing params", func(t *testing.T) {
		s, _ := newTestServer(t)
		requireError(t, call(t, s, MethodToolsCall, nil), ErrorCodeInvalidParams, "Missing params")
	})

	t.Run("missing name", func(t *testing.T) {
		s, _ := readyServer(t)
		resp := call(t, s, MethodToolsCall, map[string]any{"arguments": map[string]any{}})
		requireError(t, resp, ErrorCodeInvalidParams, "Missing tool name")
	})

	t.Run("unknown tool", func(t *testing.T) {
		s, _ := readyServer(t)
		requireError(t, callTool(t, s, "frobnicate", nil), ErrorCodeInvalidParams, "Unknown tool: frobnicate")
	})

	t.Run("missing symbol id", func(t *testing.T) {
		s, _ := readyServer(t)
		for _, tool := range []string{ToolGetSymbol, ToolGetCallers, ToolGetCallees, ToolGetSymbolUsage} {
			requireError(t, callTool(t, s, tool, map[string]any{}), ErrorCodeInvalidParams, "Missing symbol id")
		}
		requireError(t, callTool(t, s, ToolGetSymbol, map[string]any{"id": "1"}), ErrorCodeInvalidParams, "Missing symbol id")
	})

	t.Run("missing file path", func(t *testing.T) {
		s, _ := readyServer(t)
		requireError(t, callTool(t, s, ToolGetFile, nil), ErrorCodeInvalidParams, "Missing file path")
	})

	t.Run("engine failure", func(t *testing.T) {
		s, eng := readyServer(t)
		eng.fail = errors.New("database is locked")
		requireError(t, callTool(t, s, ToolStatus, nil), ErrorCodeInternalError, "database is locked")
	})

	t.Run("unknown symbol", func(t *testing.T) {
		s, _ := readyServer(t)
		resp := callTool(t, s, ToolGetSymbol, map[string]any{"id": 9999})
		requireError(t, resp, ErrorCodeInternalError, "symbol 9999: not found")
	})
}

func TestToolsCall_SearchLimit(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want int
	}{
		{"default", map[string]any{"query": "h"}, 10},
		{"zero raised to one", map[string]any{"query": "h", "limit": 0}, 1},
		{"clamped to 100", map[string]any{"query": "h", "limit": 500}, 100},
		{"negative falls back", map[string]any{"query": "h", "limit": -3}, 10},
		{"float falls back", map[string]any{"query": "h", "limit": 2.5}, 10},
		{"in range", map[string]any{"query": "h", "limit": 7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, eng := readyServer(t)
			require.Nil(t, callTool(t, s, ToolSearch, tt.args).Error)
			assert.Equal(t, tt.want, eng.searchLimit)
		})
	}

	t.Run("plain search passes limit through", func(t *testing.T) {
		s, eng := readyServer(t)
		require.Nil(t, callTool(t, s, ToolSearchSymbols, map[string]any{"query": "h", "limit": 500}).Error)
		assert.Equal(t, 500, eng.searchLimit)
		require.Nil(t, callTool(t, s, ToolSearchFiles, map[string]any{"query": "h"}).Error)
		assert.Equal(t, 10, eng.searchLimit)
		require.Nil(t, callTool(t, s, ToolSearchFiles, map[string]any{"query": "h", "limit": 0}).Error)
		assert.Equal(t, 0, eng.searchLimit)
	})
}

func TestToolsCall_Search(t *testing.T) {
	s, _ := readyServer(t)

	var results []engine.RankedSymbol
	text := toolText(t, callTool(t, s, ToolSearch, map[string]any{"query": "helper"}))
	require.NoError(t, json.Unmarshal([]byte(text), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "Helper", results[0].Symbol.Name)
	assert.Contains(t, text, "\n  ", "results are pretty printed")

	var symbols []engine.Symbol
	text = toolText(t, callTool(t, s, ToolSearchSymbols, map[string]any{"query": "name"}))
	require.NoError(t, json.Unmarshal([]byte(text), &symbols))
	require.Len(t, symbols, 1)
	assert.Equal(t, "format_name", symbols[0].Name)

	var files []engine.File
	text = toolText(t, callTool(t, s, ToolSearchFiles, map[string]any{"query": "lib/"}))
	require.NoError(t, json.Unmarshal([]byte(text), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "lib/util.py", files[0].Path)

	// Missing query searches for the empty string
	text = toolText(t, callTool(t, s, ToolSearchSymbols, nil))
	require.NoError(t, json.Unmarshal([]byte(text), &symbols))
	assert.Len(t, symbols, 3)
}

func TestToolsCall_Graph(t *testing.T) {
	s, _ := readyServer(t)

	var sym engine.Symbol
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, s, ToolGetSymbol, map[string]any{"id": 1}))), &sym))
	assert.Equal(t, "Helper", sym.Name)
	assert.Equal(t, "Helper returns one.", sym.DocComment)

	var callers []engine.Symbol
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, s, ToolGetCallers, map[string]any{"id": 1}))), &callers))
	require.Len(t, callers, 1)
	assert.Equal(t, "Caller", callers[0].Name)

	var callees []engine.Symbol
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, s, ToolGetCallees, map[string]any{"id": 1}))), &callees))
	assert.Empty(t, callees)

	var usage engine.SymbolUsage
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, s, ToolGetSymbolUsage, map[string]any{"id": 2}))), &usage))
	assert.Equal(t, "Caller", usage.Symbol.Name)
	require.Len(t, usage.Callees, 1)
	assert.Equal(t, "Helper", usage.Callees[0].Name)
}

func TestToolsCall_FileTreeStatus(t *testing.T) {
	s, eng := readyServer(t)

	var info engine.FileInfo
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, s, ToolGetFile, map[string]any{"path": "main.go"}))), &info))
	assert.Equal(t, "main.go", info.File.Path)
	assert.Len(t, info.Symbols, 2)

	var tree engine.Tree
	require.NoError(t, json.Unmarshal([]byte(toolText(t, callTool(t, s, ToolGetTree, nil))), &tree))
	require.Len(t, tree.Files, 2)
	assert.Equal(t, "lib/util.py", tree.Files[0].Path)

	var status engine.IndexStatus
	text := toolText(t, callTool(t, s, ToolStatus, nil))
	require.NoError(t, json.Unmarshal([]byte(text), &status))
	assert.Equal(t, eng.root, status.ProjectPath)
	assert.Equal(t, 3, status.IndexedSymbols)
	assert.Contains(t, text, `"last_indexed_at": null`)
}

func TestToolsCall_Index(t *testing.T) {
	s, eng := readyServer(t)

	text := toolText(t, callTool(t, s, ToolIndex, nil))
	assert.Equal(t, "Indexed 2 files with 3 symbols. Errors: none", text)
	assert.Equal(t, 1, eng.indexed)

	eng.progress = &engine.IndexProgress{FilesProcessed: 1, Errors: []string{"a.go: bad", "b.go: worse"}}
	text = toolText(t, callTool(t, s, ToolIndex, nil))
	assert.Equal(t, "Indexed 1 files with 0 symbols. Errors: a.go: bad, b.go: worse", text)
}
