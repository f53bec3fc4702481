package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type promptResult struct {
	Description string `json:"description"`
	Messages    []struct {
		Role    string `json:"role"`
		Content struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func getPrompt(t *testing.T, s *Server, name string, args map[string]any) (string, string) {
	t.Helper()
	params := map[string]any{"name": name}
	if args != nil {
		params["arguments"] = args
	}
	var result promptResult
	decodeResult(t, call(t, s, MethodPromptsGet, params), &result)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "user", result.Messages[0].Role)
	assert.Equal(t, "text", result.Messages[0].Content.Type)
	return result.Description, result.Messages[0].Content.Text
}

func TestPromptsList(t *testing.T) {
	s, _ := newTestServer(t)

	resp := call(t, s, MethodPromptsList, nil)
	var result struct {
		Prompts []struct {
			Name      string            `json:"name"`
			Arguments []json.RawMessage `json:"arguments"`
		} `json:"prompts"`
	}
	decodeResult(t, resp, &result)

	names := make([]string, len(result.Prompts))
	for i, p := range result.Prompts {
		names[i] = p.Name
		assert.NotNil(t, p.Arguments, "%s arguments encode as an array", p.Name)
	}
	assert.Equal(t, []string{
		"code_review", "explain_symbol", "find_similar", "analyze_dependencies",
		"summarize_file", "refactor_suggestions", "architecture_overview",
	}, names)

	data, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `{"name":"focus","description":"Specific aspect to focus on (security, performance, style, bugs)","required":false}`)
	assert.Contains(t, string(data), `"name":"architecture_overview","description":"Generate an overview of the project architecture based on indexed symbols","arguments":[]`)
}

func TestPromptsGet_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	requireError(t, call(t, s, MethodPromptsGet, nil), ErrorCodeInvalidParams, "Missing params")
	requireError(t, call(t, s, MethodPromptsGet, map[string]any{}), ErrorCodeInvalidParams, "Missing prompt name")
	requireError(t, call(t, s, MethodPromptsGet, map[string]any{"name": PromptFindSimilar}), ErrorCodeInternalError, "ADI not initialized")

	s, _ = readyServer(t)
	requireError(t, call(t, s, MethodPromptsGet, map[string]any{"name": "nope"}), ErrorCodeInvalidParams, "Unknown prompt: nope")
}

func TestPromptsGet_FindSimilar(t *testing.T) {
	s, _ := readyServer(t)

	desc, text := getPrompt(t, s, PromptFindSimilar, map[string]any{"description": "error handling"})
	assert.Equal(t, "Search for similar code patterns", desc)
	assert.Equal(t, "Find code in this codebase that is similar to or implements: error handling\n\n"+
		"Use the 'search' tool with semantic search to find relevant symbols, then analyze them.", text)
}

func TestPromptsGet_CodeReview(t *testing.T) {
	s, _ := readyServer(t)

	_, text := getPrompt(t, s, PromptCodeReview, map[string]any{"file_path": "main.go", "focus": "bugs"})
	assert.Contains(t, text, "Please review the following code with a focus on bugs.")
	assert.Contains(t, text, "File: main.go\nLanguage: go\nSymbols: Helper (function), Caller (function)\n")
	assert.Contains(t, text, "```\n"+fakeMainSource+"\n```")

	_, text = getPrompt(t, s, PromptCodeReview, map[string]any{"file_path": "gone.go"})
	assert.Contains(t, text, "focus on general.")
	assert.Contains(t, text, "File: gone.go\n")
	assert.Contains(t, text, "[File content not available]")
}

func TestPromptsGet_ExplainSymbol(t *testing.T) {
	s, _ := readyServer(t)

	_, text := getPrompt(t, s, PromptExplainSymbol, map[string]any{"symbol_name": "Helper"})
	assert.Equal(t, "Please explain what 'Helper' does and how it's used in this codebase.\n\n"+
		"Context from code index:\n"+
		"Symbol: Helper (function)\nFile: main.go\nSignature: func Helper() int\nDoc: Helper returns one.\nCallers: Caller\nCallees: ", text)

	_, text = getPrompt(t, s, PromptExplainSymbol, map[string]any{"symbol_name": "Ghost"})
	assert.Contains(t, text, "No symbol found with name: Ghost")
}

func TestPromptsGet_AnalyzeDependencies(t *testing.T) {
	s, _ := readyServer(t)

	_, text := getPrompt(t, s, PromptAnalyzeDependencies, map[string]any{"target": "Helper"})
	assert.Equal(t, "Analyze the dependency graph for 'Helper' (direction: both).\n\n"+
		"Dependency Information:\n"+
		"Symbol: Helper (function)\nFile: main.go\nCallers (1):\n  - Caller (main.go)\n\nCallees (0):\n", text)

	_, text = getPrompt(t, s, PromptAnalyzeDependencies, map[string]any{"target": "Caller", "direction": "callers"})
	assert.Contains(t, text, "Callees (0):\nN/A")

	_, text = getPrompt(t, s, PromptAnalyzeDependencies, map[string]any{"target": "Ghost"})
	assert.Contains(t, text, "Dependency Information:\nNo symbol found")
}

func TestPromptsGet_SummarizeFile(t *testing.T) {
	s, _ := readyServer(t)

	desc, text := getPrompt(t, s, PromptSummarizeFile, map[string]any{"file_path": "main.go"})
	assert.Equal(t, "File purpose and content summary", desc)
	assert.Contains(t, text, "Symbols:\n- Helper (function): Helper returns one.\n- Caller (function): no documentation\n")

	_, text = getPrompt(t, s, PromptSummarizeFile, map[string]any{"file_path": "gone.go"})
	assert.Contains(t, text, "Language: unknown")
	assert.Contains(t, text, "[Content not available]")
}

func TestPromptsGet_RefactorSuggestions(t *testing.T) {
	s, _ := readyServer(t)

	_, text := getPrompt(t, s, PromptRefactorSuggestions, map[string]any{"target": "Caller"})
	assert.Equal(t, "Suggest refactoring opportunities for 'Caller'.\n\nContext:\n"+
		"Symbol: Caller (function)\nFile: main.go\nReferences: 0\nCallers: 0\nCallees: 1", text)

	_, text = getPrompt(t, s, PromptRefactorSuggestions, nil)
	assert.Contains(t, text, "No symbol found. Try searching with the 'search' tool.")
}

func TestPromptsGet_ArchitectureOverview(t *testing.T) {
	s, eng := readyServer(t)

	_, text := getPrompt(t, s, PromptArchitectureOverview, nil)
	assert.Equal(t, "Generate an architecture overview for this project based on the indexed structure.\n\n"+
		"Project Statistics:\n- Total files: 2\n- Total symbols: 3\n\n"+
		"Files by language:\n- go: 1 files\n- python: 1 files", text)

	eng.fail = assert.AnError
	_, text = getPrompt(t, s, PromptArchitectureOverview, nil)
	assert.Contains(t, text, "No index available. Run the 'index' tool first.")
}
