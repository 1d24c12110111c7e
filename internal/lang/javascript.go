package lang

import (
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		Strategy:   Structured,
		lang:       javascript.GetLanguage(),
	}
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		Strategy:   Structured,
		lang:       typescript.GetLanguage(),
	}
	// TSX needs its own grammar; the plain TypeScript one rejects JSX.
	Languages["tsx"] = &Language{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		Strategy:   Structured,
		lang:       tsx.GetLanguage(),
	}
}
