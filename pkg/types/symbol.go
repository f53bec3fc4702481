package types

import (
	"errors"
)

// SymbolKind represents the kind of declaration a symbol was extracted from
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindStruct    SymbolKind = "struct"
	KindEnum      SymbolKind = "enum"
	KindInterface SymbolKind = "interface"
	KindTrait     SymbolKind = "trait"
	KindType      SymbolKind = "type"
	KindConst     SymbolKind = "constant"
	KindVar       SymbolKind = "variable"
	KindField     SymbolKind = "field"
	KindModule    SymbolKind = "module"
	KindMacro     SymbolKind = "macro"
)

// Position represents a location in source code
type Position struct {
	Line   int
	Column int
}

// Symbol represents a code symbol extracted from a source file
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Signature  string
	DocComment string

	// Parent is the enclosing type, impl block or class, empty at top level.
	Parent string

	Start Position
	End   Position
}

// IsCallable reports whether references can originate from this symbol's body
func (s *Symbol) IsCallable() bool {
	return s.Kind == KindFunction || s.Kind == KindMethod
}

// Contains reports whether the given line falls within the symbol's range
func (s *Symbol) Contains(line int) bool {
	return line >= s.Start.Line && line <= s.End.Line
}

// ValidateKind checks if the symbol kind is valid
func (s *Symbol) ValidateKind() error {
	switch s.Kind {
	case KindFunction, KindMethod, KindClass, KindStruct, KindEnum, KindInterface,
		KindTrait, KindType, KindConst, KindVar, KindField, KindModule, KindMacro:
		return nil
	default:
		return errors.New("invalid symbol kind")
	}
}

// Validate performs validation of the symbol
func (s *Symbol) Validate() error {
	if s.Name == "" {
		return errors.New("symbol name is required")
	}

	if err := s.ValidateKind(); err != nil {
		return err
	}

	if s.Kind == KindMethod && s.Parent == "" {
		return errors.New("methods must have a parent type")
	}

	if s.Start.Line <= 0 || s.End.Line <= 0 {
		return errors.New("invalid position: line numbers must be positive")
	}

	if s.Start.Line > s.End.Line {
		return errors.New("invalid position: start line must be before or equal to end line")
	}

	return nil
}
