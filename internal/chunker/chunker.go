package chunker

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/adi-family/llm-code-indexer-mcp/internal/storage"
	"github.com/adi-family/llm-code-indexer-mcp/pkg/types"
)

const (
	// MaxTokensPerChunk is the target maximum token count per document
	MaxTokensPerChunk = 1000

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

// Document is the text embedded for one symbol
type Document struct {
	SymbolID    int64
	Text        string
	ContentHash uint64
	TokenCount  int
}

// Chunker builds embedding documents from stored symbols and their source
type Chunker struct {
	maxChars int
}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{maxChars: MaxTokensPerChunk * TokensPerChar}
}

// Build creates the document for sym. lines is the owning file split on
// newlines; a nil slice yields a document made of metadata only.
//
// The document starts with a header naming the symbol, then its doc comment
// and the symbol's source, truncated to MaxTokensPerChunk.
func (c *Chunker) Build(sym *storage.Symbol, lines []string) Document {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s\n", sym.Language, sym.Kind, qualifiedName(sym))
	fmt.Fprintf(&b, "file: %s\n", sym.FilePath)
	if words := types.SplitIdentifier(sym.Name); len(words) > 1 {
		fmt.Fprintf(&b, "terms: %s\n", strings.Join(words, " "))
	}
	if sym.DocComment != "" {
		b.WriteString(sym.DocComment)
		b.WriteString("\n")
	}

	body := symbolSource(sym, lines)
	if body == "" {
		body = sym.Signature
	}
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
	}

	text := b.String()
	if len(text) > c.maxChars {
		text = strings.ToValidUTF8(text[:c.maxChars], "")
	}

	return Document{
		SymbolID:    sym.ID,
		Text:        text,
		ContentHash: xxhash.Sum64String(text),
		TokenCount:  EstimateTokenCount(text),
	}
}

// BuildAll creates documents for symbols of one file
func (c *Chunker) BuildAll(symbols []*storage.Symbol, content []byte) []Document {
	var lines []string
	if content != nil {
		lines = strings.Split(string(content), "\n")
	}
	docs := make([]Document, 0, len(symbols))
	for _, sym := range symbols {
		docs = append(docs, c.Build(sym, lines))
	}
	return docs
}

func qualifiedName(sym *storage.Symbol) string {
	if sym.Parent == "" {
		return sym.Name
	}
	return sym.Parent + "." + sym.Name
}

// symbolSource extracts the symbol's lines, or "" when the range falls
// outside the file.
func symbolSource(sym *storage.Symbol, lines []string) string {
	if sym.StartLine <= 0 || sym.EndLine <= 0 || sym.StartLine > len(lines) {
		return ""
	}

	startIdx := sym.StartLine - 1
	endIdx := sym.EndLine
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	if endIdx < startIdx {
		return ""
	}

	return strings.Join(lines[startIdx:endIdx], "\n")
}

// EstimateTokenCount estimates the number of tokens in a string
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}
