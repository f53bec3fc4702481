package parser

import (
	"context"
	"fmt"
	"go/token"
	"os"

	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

// MaxSignatureLength bounds signatures taken from declaration headers
const MaxSignatureLength = 240

// Parser extracts symbols, imports and call references from source files
type Parser struct {
	fset *token.FileSet
}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{
		fset: token.NewFileSet(),
	}
}

// ParseFile reads a file from disk and parses it
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*types.ParseResult, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return p.Parse(ctx, filePath, content)
}

// Parse extracts declarations from content according to the language detected
// from filePath. Languages without a grammar produce an empty result.
func (p *Parser) Parse(ctx context.Context, filePath string, content []byte) (*types.ParseResult, error) {
	lang := types.DetectLanguage(filePath)

	var (
		result *types.ParseResult
		err    error
	)
	switch {
	case lang == types.LangGo:
		result = p.parseGo(filePath, content)
	case hasGrammar(lang):
		result, err = parseTreeSitter(ctx, lang, filePath, content)
		if err != nil {
			return nil, err
		}
	default:
		result = &types.ParseResult{}
	}

	result.Language = lang
	result.AttributeReferences()
	return result, nil
}

// Supports reports whether symbols can be extracted for the language
func Supports(lang types.Language) bool {
	return lang == types.LangGo || hasGrammar(lang)
}

// truncateSignature keeps the first line of a declaration header
func truncateSignature(s string) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	if len(s) > MaxSignatureLength {
		s = s[:MaxSignatureLength] + "..."
	}
	return s
}
