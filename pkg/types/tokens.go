package types

import (
	"strings"
	"unicode"
)

// SplitIdentifier breaks an identifier or free text into lowercase words,
// splitting on camelCase boundaries, digits-to-letters transitions and any
// non alphanumeric separator.
//
//	SplitIdentifier("parseHTTPRequest") // ["parse", "http", "request"]
//	SplitIdentifier("max_file_size")    // ["max", "file", "size"]
func SplitIdentifier(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}
