// Package types provides shared type definitions for the adi-mcp code index.
//
// These types are produced by the parser and consumed by the indexer, and they
// are independent of how symbols are stored or served over the protocol.
//
// # Core Types
//
// Language is derived from the file extension:
//
//	lang := types.DetectLanguage("src/main.rs") // types.LangRust
//
// Symbol represents a declaration (function, method, class, struct, ...)
// extracted from a source file:
//
//	symbol := types.Symbol{
//	    Name:      "ParseFile",
//	    Kind:      types.KindFunction,
//	    Signature: "func ParseFile(path string) (*ParseResult, error)",
//	}
//
// Reference records a call site. After extraction the parser calls
// ParseResult.AttributeReferences so that every reference points at the
// innermost function or method containing it:
//
//	result.AttributeReferences()
//	caller := result.Symbols[result.References[0].Caller]
package types
