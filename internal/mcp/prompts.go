package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
)

// Prompt names
const (
	PromptCodeReview           = "code_review"
	PromptExplainSymbol        = "explain_symbol"
	PromptFindSimilar          = "find_similar"
	PromptAnalyzeDependencies  = "analyze_dependencies"
	PromptSummarizeFile        = "summarize_file"
	PromptRefactorSuggestions  = "refactor_suggestions"
	PromptArchitectureOverview = "architecture_overview"
)

// PromptArgument describes one prompt argument
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Prompt is a prompts/list entry. Arguments is always encoded as an array.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Arguments   []PromptArgument `json:"arguments"`
}

type promptList struct {
	Prompts []Prompt `json:"prompts"`
}

type promptBuilder func(ctx context.Context, eng engine.Engine, args object) string

type promptTemplate struct {
	Prompt
	// summary is the description returned by prompts/get
	summary string
	build   promptBuilder
}

var promptTemplates = []promptTemplate{
	{
		Prompt: Prompt{
			Name:        PromptCodeReview,
			Description: "Review code in a file for quality, bugs, and improvements",
			Arguments: []PromptArgument{
				{Name: "file_path", Description: "Path to the file to review (relative to project root)", Required: true},
				{Name: "focus", Description: "Specific aspect to focus on (security, performance, style, bugs)"},
			},
		},
		summary: "Code review with focus on quality, bugs, and improvements",
		build:   buildCodeReview,
	},
	{
		Prompt: Prompt{
			Name:        PromptExplainSymbol,
			Description: "Explain what a symbol does and how it's used in the codebase",
			Arguments: []PromptArgument{
				{Name: "symbol_name", Description: "Name of the symbol to explain", Required: true},
			},
		},
		summary: "Explanation of symbol purpose and usage",
		build:   buildExplainSymbol,
	},
	{
		Prompt: Prompt{
			Name:        PromptFindSimilar,
			Description: "Find similar code patterns or implementations in the codebase",
			Arguments: []PromptArgument{
				{Name: "description", Description: "Description of the code pattern to find", Required: true},
			},
		},
		summary: "Search for similar code patterns",
		build:   buildFindSimilar,
	},
	{
		Prompt: Prompt{
			Name:        PromptAnalyzeDependencies,
			Description: "Analyze the dependency graph of a symbol or file",
			Arguments: []PromptArgument{
				{Name: "target", Description: "Symbol name or file path to analyze", Required: true},
				{Name: "direction", Description: "Direction to analyze: 'callers' (who uses this), 'callees' (what this uses), or 'both'"},
			},
		},
		summary: "Dependency graph analysis",
		build:   buildAnalyzeDependencies,
	},
	{
		Prompt: Prompt{
			Name:        PromptSummarizeFile,
			Description: "Generate a summary of a file's purpose and contents",
			Arguments: []PromptArgument{
				{Name: "file_path", Description: "Path to the file to summarize", Required: true},
			},
		},
		summary: "File purpose and content summary",
		build:   buildSummarizeFile,
	},
	{
		Prompt: Prompt{
			Name:        PromptRefactorSuggestions,
			Description: "Suggest refactoring opportunities for a symbol or file",
			Arguments: []PromptArgument{
				{Name: "target", Description: "Symbol name or file path to analyze", Required: true},
			},
		},
		summary: "Refactoring recommendations",
		build:   buildRefactorSuggestions,
	},
	{
		Prompt: Prompt{
			Name:        PromptArchitectureOverview,
			Description: "Generate an overview of the project architecture based on indexed symbols",
			Arguments:   []PromptArgument{},
		},
		summary: "Project architecture overview",
		build:   buildArchitectureOverview,
	},
}

func findTemplate(name string) (promptTemplate, bool) {
	for _, t := range promptTemplates {
		if t.Name == name {
			return t, true
		}
	}
	return promptTemplate{}, false
}

func (s *Server) handlePromptsList(context.Context, json.RawMessage) (any, *RPCError) {
	prompts := make([]Prompt, len(promptTemplates))
	for i, t := range promptTemplates {
		prompts[i] = t.Prompt
	}
	return promptList{Prompts: prompts}, nil
}

func (s *Server) handlePromptsGet(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	params, rpcErr := requireParams(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, ok := params.str("name")
	if !ok {
		return nil, invalidParams("Missing prompt name")
	}
	args := params.object("arguments")

	eng, rpcErr := s.requireEngine(errNotInitialized)
	if rpcErr != nil {
		return nil, rpcErr
	}

	tmpl, ok := findTemplate(name)
	if !ok {
		return nil, invalidParams("Unknown prompt: %s", name)
	}

	text := tmpl.build(ctx, eng, args)
	return mcp.NewGetPromptResult(tmpl.summary, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	}), nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func symbolNames(symbols []engine.Symbol) string {
	names := make([]string, len(symbols))
	for i, s := range symbols {
		names[i] = s.Name
	}
	return strings.Join(names, ", ")
}

// fileContext fetches a file's metadata and live content. Either may be
// missing.
func fileContext(ctx context.Context, eng engine.Engine, path string) (*engine.FileInfo, string, bool) {
	info, err := eng.GetFile(ctx, path)
	if err != nil {
		info = nil
	}
	rel := path
	if info != nil {
		rel = info.File.Path
	}
	content, ok := readProjectFile(eng.ProjectPath(), rel)
	return info, content, ok
}

func buildCodeReview(ctx context.Context, eng engine.Engine, args object) string {
	filePath := args.strOr("file_path", "")
	focus := args.strOr("focus", "general")

	info, content, ok := fileContext(ctx, eng, filePath)
	if !ok {
		content = "[File content not available]"
	}

	var details string
	if info != nil {
		symbols := make([]string, len(info.Symbols))
		for i, s := range info.Symbols {
			symbols[i] = fmt.Sprintf("%s (%s)", s.Name, s.Kind)
		}
		details = fmt.Sprintf("File: %s\nLanguage: %s\nSymbols: %s\n", filePath, info.File.Language, strings.Join(symbols, ", "))
	} else {
		details = "File: " + filePath
	}

	return fmt.Sprintf("Please review the following code with a focus on %s.\n\n%s\n\nCode:\n```\n%s\n```\n\nProvide specific, actionable feedback.",
		focus, details, content)
}

func buildExplainSymbol(ctx context.Context, eng engine.Engine, args object) string {
	name := args.strOr("symbol_name", "")

	symbols, err := eng.FindSymbolsByName(ctx, name)
	if err != nil {
		symbols = nil
	}

	var sections []string
	for _, s := range symbols[:min(3, len(symbols))] {
		usage, err := eng.GetSymbolUsage(ctx, s.ID)
		if err != nil {
			continue
		}
		sections = append(sections, fmt.Sprintf("Symbol: %s (%s)\nFile: %s\nSignature: %s\nDoc: %s\nCallers: %s\nCallees: %s",
			s.Name, s.Kind, s.FilePath, orNA(s.Signature), orNA(s.DocComment),
			symbolNames(usage.Callers), symbolNames(usage.Callees)))
	}

	details := "No symbol found with name: " + name
	if len(sections) > 0 {
		details = strings.Join(sections, "\n\n---\n\n")
	}
	return fmt.Sprintf("Please explain what '%s' does and how it's used in this codebase.\n\nContext from code index:\n%s", name, details)
}

func buildFindSimilar(_ context.Context, _ engine.Engine, args object) string {
	return fmt.Sprintf("Find code in this codebase that is similar to or implements: %s\n\nUse the 'search' tool with semantic search to find relevant symbols, then analyze them.",
		args.strOr("description", ""))
}

func dependencyList(symbols []engine.Symbol, ok bool) (int, string) {
	if !ok {
		return 0, "N/A"
	}
	lines := make([]string, len(symbols))
	for i, s := range symbols {
		lines[i] = fmt.Sprintf("  - %s (%s)", s.Name, s.FilePath)
	}
	return len(symbols), strings.Join(lines, "\n")
}

func buildAnalyzeDependencies(ctx context.Context, eng engine.Engine, args object) string {
	target := args.strOr("target", "")
	direction := args.strOr("direction", "both")

	info := "No symbol found"
	if symbols, err := eng.FindSymbolsByName(ctx, target); err == nil && len(symbols) > 0 {
		s := symbols[0]

		var callers, callees []engine.Symbol
		var haveCallers, haveCallees bool
		if direction != "callees" {
			callers, err = eng.GetCallers(ctx, s.ID)
			haveCallers = err == nil
		}
		if direction != "callers" {
			callees, err = eng.GetCallees(ctx, s.ID)
			haveCallees = err == nil
		}
		nCallers, callerText := dependencyList(callers, haveCallers)
		nCallees, calleeText := dependencyList(callees, haveCallees)

		info = fmt.Sprintf("Symbol: %s (%s)\nFile: %s\nCallers (%d):\n%s\n\nCallees (%d):\n%s",
			s.Name, s.Kind, s.FilePath, nCallers, callerText, nCallees, calleeText)
	}

	return fmt.Sprintf("Analyze the dependency graph for '%s' (direction: %s).\n\nDependency Information:\n%s", target, direction, info)
}

func buildSummarizeFile(ctx context.Context, eng engine.Engine, args object) string {
	filePath := args.strOr("file_path", "")

	info, content, ok := fileContext(ctx, eng, filePath)
	if !ok {
		content = "[Content not available]"
	}

	language := "unknown"
	var summary []string
	if info != nil {
		language = string(info.File.Language)
		for _, s := range info.Symbols {
			doc := s.DocComment
			if doc == "" {
				doc = "no documentation"
			}
			summary = append(summary, fmt.Sprintf("- %s (%s): %s", s.Name, s.Kind, doc))
		}
	}

	return fmt.Sprintf("Please summarize the purpose and contents of this file.\n\nFile: %s\nLanguage: %s\n\nSymbols:\n%s\n\nCode:\n```\n%s\n```",
		filePath, language, strings.Join(summary, "\n"), content)
}

func buildRefactorSuggestions(ctx context.Context, eng engine.Engine, args object) string {
	target := args.strOr("target", "")

	details := "No symbol found. Try searching with the 'search' tool."
	if symbols, err := eng.FindSymbolsByName(ctx, target); err == nil && len(symbols) > 0 {
		s := symbols[0]
		if usage, err := eng.GetSymbolUsage(ctx, s.ID); err == nil {
			details = fmt.Sprintf("Symbol: %s (%s)\nFile: %s\nReferences: %d\nCallers: %d\nCallees: %d",
				s.Name, s.Kind, s.FilePath, usage.ReferenceCount, len(usage.Callers), len(usage.Callees))
		}
	}

	return fmt.Sprintf("Suggest refactoring opportunities for '%s'.\n\nContext:\n%s", target, details)
}

func buildArchitectureOverview(ctx context.Context, eng engine.Engine, _ object) string {
	overview := "No index available. Run the 'index' tool first."

	if tree, err := eng.GetTree(ctx); err == nil {
		var files, symbols int
		if status, err := eng.Status(ctx); err == nil {
			files, symbols = status.IndexedFiles, status.IndexedSymbols
		}

		byLanguage := make(map[string]int)
		for _, f := range tree.Files {
			byLanguage[string(f.Language)]++
		}
		languages := make([]string, 0, len(byLanguage))
		for lang := range byLanguage {
			languages = append(languages, lang)
		}
		slices.Sort(languages)

		lines := make([]string, len(languages))
		for i, lang := range languages {
			lines[i] = fmt.Sprintf("- %s: %d files", lang, byLanguage[lang])
		}

		overview = fmt.Sprintf("Project Statistics:\n- Total files: %d\n- Total symbols: %d\n\nFiles by language:\n%s",
			files, symbols, strings.Join(lines, "\n"))
	}

	return "Generate an architecture overview for this project based on the indexed structure.\n\n" + overview
}
