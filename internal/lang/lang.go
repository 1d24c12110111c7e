// Package lang provides a language registry mapping file extensions to
// extraction strategies: tree-sitter grammars for languages with a bundled
// grammar, line-oriented regular expressions for the rest.
package lang

import (
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// Strategy selects how definitions are extracted from a language.
type Strategy int

const (
	// Structured parses the file into a syntax tree.
	Structured Strategy = iota + 1
	// LineRegex matches Pattern against every line of the file.
	LineRegex
)

// Language holds extraction configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	Strategy   Strategy

	lang *sitter.Language

	// Pattern matches one definition per line. The identifier is captured
	// by the group named "name".
	Pattern *regexp.Regexp
	// Kind is reported for every Pattern match.
	Kind model.Kind
}

// GetLanguage returns the tree-sitter Language pointer, nil for LineRegex
// languages.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// NameIndex returns the submatch index of the "name" group in Pattern.
func (l *Language) NameIndex() int {
	if l.Pattern == nil {
		return -1
	}
	return l.Pattern.SubexpIndex("name")
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
// Matching is case-insensitive.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// ForPath returns the language for a file path, or nil if unsupported.
func ForPath(path string) *Language {
	name := ForExtension(filepath.Ext(path))
	if name == "" {
		return nil
	}
	return Languages[name]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}
