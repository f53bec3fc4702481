package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/adi-family/llm-code-indexer-mcp/internal/engine"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

type toolList struct {
	Tools []mcp.Tool `json:"tools"`
}

type toolHandler func(ctx context.Context, eng engine.Engine, args object) (any, *RPCError)

var toolHandlers = map[string]toolHandler{
	ToolSearch:         callSearch,
	ToolSearchSymbols:  callSearchSymbols,
	ToolSearchFiles:    callSearchFiles,
	ToolGetSymbol:      callGetSymbol,
	ToolGetFile:        callGetFile,
	ToolGetCallers:     callGetCallers,
	ToolGetCallees:     callGetCallees,
	ToolGetSymbolUsage: callGetSymbolUsage,
	ToolGetTree:        callGetTree,
	ToolIndex:          callIndex,
	ToolStatus:         callStatus,
}

func (s *Server) handleToolsList(context.Context, json.RawMessage) (any, *RPCError) {
	return toolList{Tools: toolCatalog()}, nil
}

func (s *Server) handleToolsCall(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	params, rpcErr := requireParams(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, ok := params.str("name")
	if !ok {
		return nil, invalidParams("Missing tool name")
	}
	args := params.object("arguments")

	eng, rpcErr := s.requireEngine(newRPCError(ErrorCodeInternalError, "ADI not initialized. Call initialize first."))
	if rpcErr != nil {
		return nil, rpcErr
	}

	handler, ok := toolHandlers[name]
	if !ok {
		return nil, invalidParams("Unknown tool: %s", name)
	}
	return handler(ctx, eng, args)
}

// toolResult wraps v as pretty printed JSON in a single text content item
func toolResult(v any) (any, *RPCError) {
	text, err := prettyJSON(v)
	if err != nil {
		return nil, internalError(err)
	}
	return mcp.NewToolResultText(text), nil
}

func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// searchLimit reads limit, defaulting to 10 and clamping into [1, 100]
func searchLimit(args object) int {
	limit := args.uintOr("limit", defaultLimit)
	return int(min(max(limit, 1), maxLimit))
}

// plainLimit reads limit, defaulting to 10, and passes it through unclamped.
// Zero is left to the engine's default.
func plainLimit(args object) int {
	return int(args.uintOr("limit", defaultLimit))
}

func symbolID(args object) (int64, *RPCError) {
	id, ok := args.int64("id")
	if !ok {
		return 0, errMissingSymbol
	}
	return id, nil
}

func callSearch(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	results, err := eng.Search(ctx, args.strOr("query", ""), searchLimit(args))
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(results)
}

func callSearchSymbols(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	results, err := eng.SearchSymbols(ctx, args.strOr("query", ""), plainLimit(args))
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(results)
}

func callSearchFiles(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	results, err := eng.SearchFiles(ctx, args.strOr("query", ""), plainLimit(args))
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(results)
}

func callGetSymbol(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	id, rpcErr := symbolID(args)
	if rpcErr != nil {
		return nil, rpcErr
	}
	sym, err := eng.GetSymbol(ctx, id)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(sym)
}

func callGetFile(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	path, ok := args.str("path")
	if !ok {
		return nil, invalidParams("Missing file path")
	}
	info, err := eng.GetFile(ctx, path)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(info)
}

func callGetCallers(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	id, rpcErr := symbolID(args)
	if rpcErr != nil {
		return nil, rpcErr
	}
	callers, err := eng.GetCallers(ctx, id)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(callers)
}

func callGetCallees(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	id, rpcErr := symbolID(args)
	if rpcErr != nil {
		return nil, rpcErr
	}
	callees, err := eng.GetCallees(ctx, id)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(callees)
}

func callGetSymbolUsage(ctx context.Context, eng engine.Engine, args object) (any, *RPCError) {
	id, rpcErr := symbolID(args)
	if rpcErr != nil {
		return nil, rpcErr
	}
	usage, err := eng.GetSymbolUsage(ctx, id)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(usage)
}

func callGetTree(ctx context.Context, eng engine.Engine, _ object) (any, *RPCError) {
	tree, err := eng.GetTree(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(tree)
}

func callIndex(ctx context.Context, eng engine.Engine, _ object) (any, *RPCError) {
	progress, err := eng.Index(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return mcp.NewToolResultText(IndexSummary(progress)), nil
}

// IndexSummary renders an index run as a single line
func IndexSummary(p *engine.IndexProgress) string {
	errs := "none"
	if len(p.Errors) > 0 {
		errs = strings.Join(p.Errors, ", ")
	}
	return fmt.Sprintf("Indexed %d files with %d symbols. Errors: %s", p.FilesProcessed, p.SymbolsIndexed, errs)
}

func callStatus(ctx context.Context, eng engine.Engine, _ object) (any, *RPCError) {
	status, err := eng.Status(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return toolResult(status)
}
