package impact

import (
	"strings"

	"github.com/sayantanmandal1/function-dependency-warner/internal/graph"
)

// DetectEdited guesses which graph functions an edit touched by looking for
// their names in the edited text. Names written as "def NAME(" or
// "function NAME(" come first, then names that only appear as "NAME(".
// Within each group names are in sorted order.
func DetectEdited(content string, g *graph.Graph) []string {
	var defs, calls []string
	for _, name := range g.Names() {
		switch {
		case strings.Contains(content, "def "+name+"(") || strings.Contains(content, "function "+name+"("):
			defs = append(defs, name)
		case containsCall(content, name):
			calls = append(calls, name)
		}
	}
	return append(defs, calls...)
}

// containsCall reports whether "name(" occurs with no identifier character
// immediately before it.
func containsCall(content, name string) bool {
	needle := name + "("
	for i := 0; ; {
		j := strings.Index(content[i:], needle)
		if j < 0 {
			return false
		}
		at := i + j
		if at == 0 || !isIdentByte(content[at-1]) {
			return true
		}
		i = at + 1
	}
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}
