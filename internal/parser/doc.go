// Package parser extracts symbols, imports and call references from source files.
//
// Go files are parsed with the standard library (go/parser, go/ast). Python,
// JavaScript, TypeScript, TSX, Rust and Bash are parsed with tree-sitter
// grammars. Files in any other language yield an empty result so that they
// can still be indexed as plain files.
//
// # Basic Usage
//
//	p := parser.New()
//	result, err := p.ParseFile(ctx, "/path/to/lib.rs")
//	if err != nil {
//	    return err
//	}
//
//	for _, symbol := range result.Symbols {
//	    fmt.Printf("Found %s: %s\n", symbol.Kind, symbol.Name)
//	}
//
// # References
//
// Every call site found inside a function or method body becomes a
// types.Reference carrying the callee's final name segment (obj.method and
// Type::func both resolve to the last identifier). References are attributed
// to the innermost enclosing callable; call sites at file scope have
// Caller == -1.
//
// # Error Handling
//
// Syntax errors do not fail the parse. They are recorded on the result and
// whatever the parser recovered is still returned:
//
//	if result.HasErrors() {
//	    for _, parseErr := range result.Errors {
//	        fmt.Printf("Parse error: %v\n", parseErr)
//	    }
//	}
package parser
