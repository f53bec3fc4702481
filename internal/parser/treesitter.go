package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// nodeRule describes how a declaration node becomes a symbol.
// An empty kind marks a container that only names its children (Rust impl).
type nodeRule struct {
	kind      types.SymbolKind
	nameField string
	container bool
}

type grammar struct {
	language func() *sitter.Language
	decls    map[string]nodeRule
	calls    map[string]string // call node type -> field holding the callee
	imports  map[string]string // import node type -> field holding the path
}

var (
	jsDecls = map[string]nodeRule{
		"function_declaration":           {kind: types.KindFunction, nameField: "name"},
		"generator_function_declaration": {kind: types.KindFunction, nameField: "name"},
		"class_declaration":              {kind: types.KindClass, nameField: "name", container: true},
		"method_definition":              {kind: types.KindMethod, nameField: "name"},
		"variable_declarator":            {kind: types.KindFunction, nameField: "name"},
	}
	tsDecls = merge(jsDecls, map[string]nodeRule{
		"abstract_class_declaration": {kind: types.KindClass, nameField: "name", container: true},
		"interface_declaration":      {kind: types.KindInterface, nameField: "name", container: true},
		"type_alias_declaration":     {kind: types.KindType, nameField: "name"},
		"enum_declaration":           {kind: types.KindEnum, nameField: "name"},
		"method_signature":           {kind: types.KindMethod, nameField: "name"},
		"abstract_method_signature":  {kind: types.KindMethod, nameField: "name"},
		"function_signature":         {kind: types.KindFunction, nameField: "name"},
		"internal_module":            {kind: types.KindModule, nameField: "name"},
	})
	jsCalls   = map[string]string{"call_expression": "function", "new_expression": "constructor"}
	jsImports = map[string]string{"import_statement": "source"}
)

var grammars = map[types.Language]grammar{
	types.LangPython: {
		language: python.GetLanguage,
		decls: map[string]nodeRule{
			"function_definition": {kind: types.KindFunction, nameField: "name"},
			"class_definition":    {kind: types.KindClass, nameField: "name", container: true},
		},
		calls:   map[string]string{"call": "function"},
		imports: map[string]string{"import_statement": "name", "import_from_statement": "module_name"},
	},
	types.LangJavaScript: {
		language: javascript.GetLanguage,
		decls:    jsDecls,
		calls:    jsCalls,
		imports:  jsImports,
	},
	types.LangTypeScript: {
		language: typescript.GetLanguage,
		decls:    tsDecls,
		calls:    jsCalls,
		imports:  jsImports,
	},
	types.LangTSX: {
		language: tsx.GetLanguage,
		decls:    tsDecls,
		calls:    jsCalls,
		imports:  jsImports,
	},
	types.LangRust: {
		language: rust.GetLanguage,
		decls: map[string]nodeRule{
			"function_item":           {kind: types.KindFunction, nameField: "name"},
			"function_signature_item": {kind: types.KindFunction, nameField: "name"},
			"struct_item":             {kind: types.KindStruct, nameField: "name"},
			"enum_item":               {kind: types.KindEnum, nameField: "name"},
			"union_item":              {kind: types.KindStruct, nameField: "name"},
			"trait_item":              {kind: types.KindTrait, nameField: "name", container: true},
			"impl_item":               {nameField: "type", container: true},
			"type_item":               {kind: types.KindType, nameField: "name"},
			"const_item":              {kind: types.KindConst, nameField: "name"},
			"static_item":             {kind: types.KindVar, nameField: "name"},
			"mod_item":                {kind: types.KindModule, nameField: "name"},
			"macro_definition":        {kind: types.KindMacro, nameField: "name"},
		},
		calls:   map[string]string{"call_expression": "function", "macro_invocation": "macro"},
		imports: map[string]string{"use_declaration": "argument"},
	},
	types.LangBash: {
		language: bash.GetLanguage,
		decls: map[string]nodeRule{
			"function_definition": {kind: types.KindFunction, nameField: "name"},
		},
		calls: map[string]string{"command": "name"},
	},
}

func merge(base, extra map[string]nodeRule) map[string]nodeRule {
	out := make(map[string]nodeRule, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func hasGrammar(lang types.Language) bool {
	_, ok := grammars[lang]
	return ok
}

// parseTreeSitter parses content with the tree-sitter grammar registered for
// lang. A sitter.Parser is not safe for concurrent use so each call builds
// its own.
func parseTreeSitter(ctx context.Context, lang types.Language, filePath string, content []byte) (*types.ParseResult, error) {
	g, ok := grammars[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnsupportedLanguage, lang)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(g.language())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", filePath, err)
	}
	defer tree.Close()

	result := &types.ParseResult{}
	root := tree.RootNode()
	if root.HasError() {
		result.AddError(filePath, 0, 0, "syntax errors in source")
	}

	w := &tsWalker{g: g, lang: lang, src: content, result: result}
	w.walk(root, "")
	return result, nil
}

type tsWalker struct {
	g      grammar
	lang   types.Language
	src    []byte
	result *types.ParseResult
}

func (w *tsWalker) walk(node *sitter.Node, parent string) {
	nodeType := node.Type()
	childParent := parent

	if rule, ok := w.g.decls[nodeType]; ok {
		if sym, ok := w.symbol(node, rule, parent); ok {
			w.result.Symbols = append(w.result.Symbols, sym)
			switch {
			case rule.container:
				childParent = sym.Name
			case sym.Kind == types.KindFunction || sym.Kind == types.KindMethod:
				childParent = ""
			}
		} else if rule.kind == "" && rule.container {
			childParent = w.containerName(node, rule)
		}
	}

	if field, ok := w.g.calls[nodeType]; ok {
		if callee := node.ChildByFieldName(field); callee != nil {
			if name := calleeName(callee, w.src, 0); name != "" {
				w.result.References = append(w.result.References, types.Reference{
					Name: name,
					Line: int(node.StartPoint().Row) + 1,
				})
			}
		}
	}

	if field, ok := w.g.imports[nodeType]; ok {
		if target := node.ChildByFieldName(field); target != nil {
			w.result.Imports = append(w.result.Imports, types.Import{
				Path: strings.Trim(target.Content(w.src), "\"'`"),
			})
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		w.walk(node.NamedChild(i), childParent)
	}
}

func (w *tsWalker) symbol(node *sitter.Node, rule nodeRule, parent string) (types.Symbol, bool) {
	if rule.kind == "" {
		return types.Symbol{}, false
	}
	nameNode := node.ChildByFieldName(rule.nameField)
	if nameNode == nil {
		return types.Symbol{}, false
	}
	name := nameNode.Content(w.src)
	if name == "" {
		return types.Symbol{}, false
	}

	kind := rule.kind
	if node.Type() == "variable_declarator" {
		value := node.ChildByFieldName("value")
		if value == nil || !isFunctionValue(value.Type()) {
			return types.Symbol{}, false
		}
	}
	if kind == types.KindFunction && parent != "" {
		kind = types.KindMethod
	}
	if kind == types.KindMethod && parent == "" {
		kind = types.KindFunction
	}

	start, end := node.StartPoint(), node.EndPoint()
	return types.Symbol{
		Name:       name,
		Kind:       kind,
		Parent:     parent,
		Signature:  declarationHeader(node.Content(w.src)),
		DocComment: w.docComment(node),
		Start:      types.Position{Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:        types.Position{Line: int(end.Row) + 1, Column: int(end.Column) + 1},
	}, true
}

// containerName names an impl block after the implemented type without its
// generic arguments.
func (w *tsWalker) containerName(node *sitter.Node, rule nodeRule) string {
	target := node.ChildByFieldName(rule.nameField)
	if target == nil {
		return ""
	}
	name := target.Content(w.src)
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return strings.TrimSpace(name)
}

func isFunctionValue(nodeType string) bool {
	switch nodeType {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

// calleeName reduces a callee expression to its final identifier:
// obj.method, Type::func and module.fn all resolve to the last segment.
func calleeName(node *sitter.Node, src []byte, depth int) string {
	if depth > 8 {
		return ""
	}
	var next *sitter.Node
	switch node.Type() {
	case "member_expression":
		next = node.ChildByFieldName("property")
	case "attribute":
		next = node.ChildByFieldName("attribute")
	case "field_expression":
		next = node.ChildByFieldName("field")
	case "scoped_identifier":
		next = node.ChildByFieldName("name")
	case "generic_function":
		next = node.ChildByFieldName("function")
	case "command_name":
		if node.NamedChildCount() > 0 {
			next = node.NamedChild(0)
		}
	case "identifier", "property_identifier", "field_identifier", "word", "type_identifier":
		return node.Content(src)
	default:
		return ""
	}
	if next == nil {
		return ""
	}
	return calleeName(next, src, depth+1)
}

// docComment gathers the comment block directly above a declaration, or the
// docstring opening a Python body.
func (w *tsWalker) docComment(node *sitter.Node) string {
	if w.lang == types.LangPython {
		if doc := pythonDocstring(node, w.src); doc != "" {
			return doc
		}
	}

	anchor := node
	if p := node.Parent(); p != nil {
		switch p.Type() {
		case "export_statement", "decorated_definition", "lexical_declaration", "variable_declaration":
			anchor = p
		}
	}
	if anchor.Type() == "lexical_declaration" || anchor.Type() == "variable_declaration" {
		if p := anchor.Parent(); p != nil && p.Type() == "export_statement" {
			anchor = p
		}
	}

	var lines []string
	nextRow := anchor.StartPoint().Row
	for prev := anchor.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if !strings.Contains(prev.Type(), "comment") || prev.EndPoint().Row+1 < nextRow {
			break
		}
		lines = append([]string{cleanComment(prev.Content(w.src))}, lines...)
		nextRow = prev.StartPoint().Row
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func pythonDocstring(node *sitter.Node, src []byte) string {
	body := node.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	text := str.Content(src)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	return strings.TrimSpace(text)
}

func cleanComment(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"///", "//!", "//", "/**", "/*", "#"} {
			if strings.HasPrefix(line, prefix) {
				line = strings.TrimPrefix(line, prefix)
				break
			}
		}
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimPrefix(strings.TrimSpace(line), "* ")
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// declarationHeader keeps the first line of a declaration without its
// opening brace or colon.
func declarationHeader(text string) string {
	sig := truncateSignature(text)
	sig = strings.TrimSpace(sig)
	sig = strings.TrimSuffix(sig, "{")
	return strings.TrimSpace(sig)
}
