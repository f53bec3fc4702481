package types

// ParseResult represents the output of parsing one source file
type ParseResult struct {
	Language Language

	// Extracted data
	Symbols    []Symbol
	References []Reference
	Imports    []Import

	// Errors encountered during parsing
	Errors []ParseError
}

// Reference is a call or use of a name from inside a symbol body.
// Caller indexes into ParseResult.Symbols, or is -1 at file scope.
type Reference struct {
	Caller int
	Name   string
	Line   int
}

// Import represents an import, use or require statement
type Import struct {
	Path  string
	Alias string
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (pr *ParseResult) HasErrors() bool {
	return len(pr.Errors) > 0
}

// AddError adds a parsing error to the result
func (pr *ParseResult) AddError(file string, line, col int, msg string) {
	pr.Errors = append(pr.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}

// AttributeReferences assigns each reference to the innermost callable
// symbol whose line range contains it.
func (pr *ParseResult) AttributeReferences() {
	for i := range pr.References {
		ref := &pr.References[i]
		ref.Caller = -1
		best := -1
		for j := range pr.Symbols {
			sym := &pr.Symbols[j]
			if !sym.IsCallable() || !sym.Contains(ref.Line) {
				continue
			}
			if best < 0 || span(sym) < span(&pr.Symbols[best]) {
				best = j
			}
		}
		ref.Caller = best
	}
}

func span(s *Symbol) int {
	return s.End.Line - s.Start.Line
}
