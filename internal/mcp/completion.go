package mcp

import (
	"context"
	"encoding/json"
	"strings"
)

// Completion reference types
const (
	RefPrompt   = "ref/prompt"
	RefResource = "ref/resource"
)

const maxCompletions = 20

var (
	focusValues     = []string{"security", "performance", "style", "bugs", "general"}
	directionValues = []string{"callers", "callees", "both"}
)

type completionValues struct {
	Values  []string `json:"values"`
	HasMore bool     `json:"hasMore"`
}

type completionResult struct {
	Completion completionValues `json:"completion"`
}

func newCompletion(values []string) completionResult {
	if values == nil {
		values = []string{}
	}
	return completionResult{Completion: completionValues{Values: values}}
}

func (s *Server) handleCompletion(ctx context.Context, raw json.RawMessage) (any, *RPCError) {
	params, rpcErr := requireParams(raw)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if !params.has("ref") {
		return nil, invalidParams("Missing ref parameter")
	}
	refType := params.object("ref").strOr("type", "")
	argument := params.object("argument")
	argName := argument.strOr("name", "")
	value := argument.strOr("value", "")

	eng := s.session.engine
	if eng == nil {
		return newCompletion(nil), nil
	}

	switch {
	case refType == RefResource, refType == RefPrompt && argName == "file_path":
		tree, err := eng.GetTree(ctx)
		if err != nil {
			return newCompletion(nil), nil
		}
		var paths []string
		for _, f := range tree.Files {
			if len(paths) == maxCompletions {
				break
			}
			if strings.Contains(f.Path, value) {
				paths = append(paths, f.Path)
			}
		}
		return newCompletion(paths), nil

	case refType == RefPrompt && (argName == "symbol_name" || argName == "target"):
		if value == "" {
			return newCompletion(nil), nil
		}
		symbols, err := eng.SearchSymbols(ctx, value, maxCompletions)
		if err != nil {
			return newCompletion(nil), nil
		}
		names := make([]string, len(symbols))
		for i, sym := range symbols {
			names[i] = sym.Name
		}
		return newCompletion(names), nil

	case refType == RefPrompt && argName == "focus":
		return newCompletion(filterContaining(focusValues, value)), nil

	case refType == RefPrompt && argName == "direction":
		return newCompletion(filterContaining(directionValues, value)), nil
	}

	return newCompletion(nil), nil
}

func filterContaining(values []string, sub string) []string {
	var out []string
	for _, v := range values {
		if strings.Contains(v, sub) {
			out = append(out, v)
		}
	}
	return out
}
