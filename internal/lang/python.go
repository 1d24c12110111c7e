package lang

import (
	"regexp"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// pythonDefRe matches "def name(" and "async def name(" at any indentation.
// A def inside a triple-quoted string matches too.
var pythonDefRe = regexp.MustCompile(`^\s*(?:async\s+)?def\s+(?P<name>\w+)\s*\(`)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py", ".pyi"},
		Strategy:   LineRegex,
		Pattern:    pythonDefRe,
		Kind:       model.PythonFunction,
	}
}
