package types

import (
	"path/filepath"
	"strings"
)

// Language identifies the source language of an indexed file
type Language string

const (
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangJava       Language = "java"
	LangGo         Language = "go"
	LangC          Language = "c"
	LangCpp        Language = "cpp"
	LangCSharp     Language = "csharp"
	LangRuby       Language = "ruby"
	LangPhp        Language = "php"
	LangKotlin     Language = "kotlin"
	LangScala      Language = "scala"
	LangSwift      Language = "swift"
	LangBash       Language = "bash"
	LangJSON       Language = "json"
	LangYAML       Language = "yaml"
	LangTOML       Language = "toml"
	LangXML        Language = "xml"
	LangHTML       Language = "html"
	LangCSS        Language = "css"
	LangMarkdown   Language = "markdown"
	LangUnknown    Language = "unknown"
)

var extensionLanguages = map[string]Language{
	".rs":       LangRust,
	".py":       LangPython,
	".pyi":      LangPython,
	".js":       LangJavaScript,
	".mjs":      LangJavaScript,
	".cjs":      LangJavaScript,
	".jsx":      LangJavaScript,
	".ts":       LangTypeScript,
	".mts":      LangTypeScript,
	".cts":      LangTypeScript,
	".tsx":      LangTSX,
	".java":     LangJava,
	".go":       LangGo,
	".c":        LangC,
	".h":        LangC,
	".cc":       LangCpp,
	".cpp":      LangCpp,
	".cxx":      LangCpp,
	".hpp":      LangCpp,
	".hh":       LangCpp,
	".cs":       LangCSharp,
	".rb":       LangRuby,
	".php":      LangPhp,
	".kt":       LangKotlin,
	".kts":      LangKotlin,
	".scala":    LangScala,
	".swift":    LangSwift,
	".sh":       LangBash,
	".bash":     LangBash,
	".zsh":      LangBash,
	".json":     LangJSON,
	".yaml":     LangYAML,
	".yml":      LangYAML,
	".toml":     LangTOML,
	".xml":      LangXML,
	".html":     LangHTML,
	".htm":      LangHTML,
	".css":      LangCSS,
	".md":       LangMarkdown,
	".markdown": LangMarkdown,
}

// DetectLanguage maps a file path to its language by extension.
// Unrecognized files report LangUnknown.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return LangUnknown
}

// ParseLanguage converts a configured language name into a Language.
func ParseLanguage(name string) Language {
	lang := Language(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range extensionLanguages {
		if known == lang {
			return lang
		}
	}
	return LangUnknown
}

// String returns the language name
func (l Language) String() string {
	return string(l)
}

// IsKnown reports whether the language was recognized
func (l Language) IsKnown() bool {
	return l != LangUnknown && l != ""
}
