package parser

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// parseGo extracts symbols with go/ast. Syntax errors are recorded and the
// partial AST is still walked.
func (p *Parser) parseGo(filePath string, content []byte) *types.ParseResult {
	result := &types.ParseResult{}

	file, err := parser.ParseFile(p.fset, filePath, content, parser.ParseComments)
	if err != nil {
		result.AddError(filePath, 0, 0, fmt.Sprintf("syntax error: %v", err))
	}
	if file == nil {
		return result
	}

	result.Imports = extractGoImports(file)

	extractor := &goExtractor{
		fset:    p.fset,
		symbols: make([]types.Symbol, 0),
	}
	for _, decl := range file.Decls {
		extractor.visitDecl(decl)
	}
	result.Symbols = extractor.symbols
	result.References = extractor.refs

	return result
}

// extractGoImports extracts import statements from the AST
func extractGoImports(file *ast.File) []types.Import {
	imports := make([]types.Import, 0, len(file.Imports))

	for _, imp := range file.Imports {
		spec := types.Import{
			Path: strings.Trim(imp.Path.Value, `"`),
		}
		if imp.Name != nil {
			spec.Alias = imp.Name.Name
		}
		imports = append(imports, spec)
	}

	return imports
}

type goExtractor struct {
	fset    *token.FileSet
	symbols []types.Symbol
	refs    []types.Reference
}

func (e *goExtractor) visitDecl(decl ast.Decl) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		e.extractFunction(d)
	case *ast.GenDecl:
		for _, spec := range d.Specs {
			switch s := spec.(type) {
			case *ast.TypeSpec:
				e.extractTypeSpec(s, d.Doc)
			case *ast.ValueSpec:
				e.extractValueSpec(s, d.Doc, d.Tok)
			}
		}
	}
}

// extractFunction extracts function and method declarations plus the calls
// made from their bodies
func (e *goExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	sym := types.Symbol{
		Name:       funcDecl.Name.Name,
		Kind:       types.KindFunction,
		DocComment: docText(funcDecl.Doc),
		Start:      e.position(funcDecl.Pos()),
		End:        e.position(funcDecl.End()),
	}

	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sym.Kind = types.KindMethod
		sym.Parent = receiverName(funcDecl.Recv.List[0].Type)
	}
	sym.Signature = e.functionSignature(funcDecl)

	e.symbols = append(e.symbols, sym)

	if funcDecl.Body == nil {
		return
	}
	ast.Inspect(funcDecl.Body, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		var name string
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			name = fn.Name
		case *ast.SelectorExpr:
			name = fn.Sel.Name
		case *ast.IndexExpr:
			if id, ok := fn.X.(*ast.Ident); ok {
				name = id.Name
			}
		}
		if name != "" && !isGoBuiltin(name) {
			e.refs = append(e.refs, types.Reference{
				Name: name,
				Line: e.position(call.Pos()).Line,
			})
		}
		return true
	})
}

// extractTypeSpec extracts struct, interface, and named type declarations
func (e *goExtractor) extractTypeSpec(typeSpec *ast.TypeSpec, groupDoc *ast.CommentGroup) {
	doc := typeSpec.Doc
	if doc == nil {
		doc = groupDoc
	}
	sym := types.Symbol{
		Name:       typeSpec.Name.Name,
		DocComment: docText(doc),
		Start:      e.position(typeSpec.Pos()),
		End:        e.position(typeSpec.End()),
	}

	switch t := typeSpec.Type.(type) {
	case *ast.StructType:
		sym.Kind = types.KindStruct
		fields := 0
		if t.Fields != nil {
			fields = t.Fields.NumFields()
		}
		sym.Signature = fmt.Sprintf("type %s struct { ... } // %d fields", sym.Name, fields)
	case *ast.InterfaceType:
		sym.Kind = types.KindInterface
		methods := 0
		if t.Methods != nil {
			methods = t.Methods.NumFields()
		}
		sym.Signature = fmt.Sprintf("type %s interface { ... } // %d methods", sym.Name, methods)
	default:
		sym.Kind = types.KindType
		sym.Signature = fmt.Sprintf("type %s %s", sym.Name, exprString(typeSpec.Type))
	}

	e.symbols = append(e.symbols, sym)

	if st, ok := typeSpec.Type.(*ast.StructType); ok && st.Fields != nil {
		for _, field := range st.Fields.List {
			for _, name := range field.Names {
				e.symbols = append(e.symbols, types.Symbol{
					Name:       name.Name,
					Kind:       types.KindField,
					Parent:     typeSpec.Name.Name,
					DocComment: docText(field.Doc),
					Start:      e.position(field.Pos()),
					End:        e.position(field.End()),
					Signature:  fmt.Sprintf("%s %s", name.Name, exprString(field.Type)),
				})
			}
		}
	}
}

// extractValueSpec extracts const and var declarations
func (e *goExtractor) extractValueSpec(valueSpec *ast.ValueSpec, groupDoc *ast.CommentGroup, tok token.Token) {
	kind := types.KindVar
	if tok == token.CONST {
		kind = types.KindConst
	}
	doc := valueSpec.Doc
	if doc == nil {
		doc = groupDoc
	}

	for _, name := range valueSpec.Names {
		if name.Name == "_" {
			continue
		}
		sym := types.Symbol{
			Name:       name.Name,
			Kind:       kind,
			DocComment: docText(doc),
			Start:      e.position(valueSpec.Pos()),
			End:        e.position(valueSpec.End()),
		}

		switch {
		case valueSpec.Type != nil:
			sym.Signature = fmt.Sprintf("%s %s", name.Name, exprString(valueSpec.Type))
		case len(valueSpec.Values) > 0:
			sym.Signature = fmt.Sprintf("%s = ...", name.Name)
		default:
			sym.Signature = name.Name
		}

		e.symbols = append(e.symbols, sym)
	}
}

// functionSignature builds a function signature string
func (e *goExtractor) functionSignature(funcDecl *ast.FuncDecl) string {
	var sig strings.Builder

	sig.WriteString("func ")
	if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
		sig.WriteString("(")
		sig.WriteString(exprString(funcDecl.Recv.List[0].Type))
		sig.WriteString(") ")
	}
	sig.WriteString(funcDecl.Name.Name)

	sig.WriteString("(")
	if funcDecl.Type.Params != nil {
		sig.WriteString(fieldListString(funcDecl.Type.Params))
	}
	sig.WriteString(")")

	if funcDecl.Type.Results != nil {
		results := fieldListString(funcDecl.Type.Results)
		if results != "" {
			if funcDecl.Type.Results.NumFields() > 1 || len(funcDecl.Type.Results.List[0].Names) > 0 {
				sig.WriteString(" (")
				sig.WriteString(results)
				sig.WriteString(")")
			} else {
				sig.WriteString(" ")
				sig.WriteString(results)
			}
		}
	}

	return sig.String()
}

func (e *goExtractor) position(pos token.Pos) types.Position {
	p := e.fset.Position(pos)
	return types.Position{Line: p.Line, Column: p.Column}
}

// receiverName extracts the receiver type name from a method
func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	case *ast.IndexListExpr:
		return receiverName(t.X)
	}
	return ""
}

func fieldListString(fieldList *ast.FieldList) string {
	if fieldList == nil || len(fieldList.List) == 0 {
		return ""
	}

	var parts []string
	for _, field := range fieldList.List {
		typeStr := exprString(field.Type)
		if len(field.Names) == 0 {
			parts = append(parts, typeStr)
			continue
		}
		for _, name := range field.Names {
			parts = append(parts, name.Name+" "+typeStr)
		}
	}

	return strings.Join(parts, ", ")
}

// exprString renders a type expression compactly
func exprString(expr ast.Expr) string {
	if expr == nil {
		return ""
	}

	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + exprString(t.X)
	case *ast.ArrayType:
		return "[]" + exprString(t.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(t.Key), exprString(t.Value))
	case *ast.ChanType:
		return "chan " + exprString(t.Value)
	case *ast.FuncType:
		return "func(...)"
	case *ast.InterfaceType:
		return "interface{}"
	case *ast.StructType:
		return "struct{...}"
	case *ast.SelectorExpr:
		return exprString(t.X) + "." + t.Sel.Name
	case *ast.Ellipsis:
		return "..." + exprString(t.Elt)
	case *ast.IndexExpr:
		return exprString(t.X) + "[" + exprString(t.Index) + "]"
	case *ast.IndexListExpr:
		args := make([]string, len(t.Indices))
		for i, idx := range t.Indices {
			args[i] = exprString(idx)
		}
		return exprString(t.X) + "[" + strings.Join(args, ", ") + "]"
	default:
		return "..."
	}
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	return strings.TrimSpace(doc.Text())
}

var goBuiltins = map[string]bool{
	"append": true, "cap": true, "clear": true, "close": true, "complex": true,
	"copy": true, "delete": true, "imag": true, "len": true, "make": true,
	"max": true, "min": true, "new": true, "panic": true, "print": true,
	"println": true, "real": true, "recover": true,
}

func isGoBuiltin(name string) bool {
	return goBuiltins[name]
}
