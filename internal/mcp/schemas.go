package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool names
const (
	ToolSearch         = "search"
	ToolSearchSymbols  = "search_symbols"
	ToolSearchFiles    = "search_files"
	ToolGetSymbol      = "get_symbol"
	ToolGetFile        = "get_file"
	ToolGetCallers     = "get_callers"
	ToolGetCallees     = "get_callees"
	ToolGetSymbolUsage = "get_symbol_usage"
	ToolGetTree        = "get_tree"
	ToolIndex          = "index"
	ToolStatus         = "status"
)

func readOnly() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    mcp.ToBoolPtr(true),
		DestructiveHint: mcp.ToBoolPtr(false),
		IdempotentHint:  mcp.ToBoolPtr(true),
		OpenWorldHint:   mcp.ToBoolPtr(false),
	}
}

func objectSchema(properties map[string]any, required ...string) mcp.ToolInputSchema {
	return mcp.ToolInputSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

func queryTool(name, description, queryDescription string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: objectSchema(map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": queryDescription,
			},
			"limit": map[string]any{
				"type":    "integer",
				"default": 10,
			},
		}, "query"),
		Annotations: readOnly(),
	}
}

func symbolIDTool(name, description, idDescription string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: objectSchema(map[string]any{
			"id": map[string]any{
				"type":        "integer",
				"description": idDescription,
			},
		}, "id"),
		Annotations: readOnly(),
	}
}

// toolCatalog returns the static tools/list payload, in advertised order
func toolCatalog() []mcp.Tool {
	search := mcp.Tool{
		Name:        ToolSearch,
		Description: "Semantic search for code symbols using natural language. Returns symbols ranked by relevance.",
		InputSchema: objectSchema(map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Natural language search query (e.g., 'function that handles user authentication')",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results (1-100)",
				"default":     10,
				"minimum":     1,
				"maximum":     100,
			},
		}, "query"),
		Annotations: readOnly(),
	}

	getFile := mcp.Tool{
		Name:        ToolGetFile,
		Description: "Get file information including all symbols defined in it.",
		InputSchema: objectSchema(map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "File path relative to project root",
			},
		}, "path"),
		Annotations: readOnly(),
	}

	getTree := mcp.Tool{
		Name:        ToolGetTree,
		Description: "Get the complete project structure as a hierarchical tree of files and symbols.",
		InputSchema: objectSchema(map[string]any{}),
		Annotations: readOnly(),
	}

	index := mcp.Tool{
		Name:        ToolIndex,
		Description: "Index or re-index the project. Parses all source files and generates embeddings.",
		InputSchema: objectSchema(map[string]any{}),
		Annotations: mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(false),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		},
	}

	status := mcp.Tool{
		Name:        ToolStatus,
		Description: "Get current indexing status including file/symbol counts and storage size.",
		InputSchema: objectSchema(map[string]any{}),
		Annotations: readOnly(),
	}

	return []mcp.Tool{
		search,
		queryTool(ToolSearchSymbols,
			"Full-text search for symbols by name. Use for finding specific functions, classes, or variables.",
			"Symbol name to search (supports partial matching)"),
		queryTool(ToolSearchFiles,
			"Full-text search for files by path or name.",
			"File path or name pattern"),
		symbolIDTool(ToolGetSymbol,
			"Get detailed information about a specific symbol by its ID.",
			"Symbol ID (from search results)"),
		getFile,
		symbolIDTool(ToolGetCallers,
			"Find all symbols that call/reference a given symbol.",
			"Symbol ID to find callers for"),
		symbolIDTool(ToolGetCallees,
			"Find all symbols that a given symbol calls/references.",
			"Symbol ID to find callees for"),
		symbolIDTool(ToolGetSymbolUsage,
			"Get complete usage statistics for a symbol including reference count, callers, and callees.",
			"Symbol ID"),
		getTree,
		index,
		status,
	}
}
