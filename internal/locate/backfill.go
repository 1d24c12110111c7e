package locate

import (
	"bytes"
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/sayantanmandal1/function-dependency-warner/internal/discover"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// statementStart matches lines led by a keyword that begins a statement or
// expression. Such a line is a call site even when it is shaped like a
// signature broken across lines, as in "return compute(a,".
var statementStart = regexp.MustCompile(`^\s*(?:return|new|throw|await|yield|else|case)\b`)

// definitionPatterns returns loose per-line patterns for a definition of
// name. They accept shapes the extractors skip: assignments to properties
// and object literal members.
func definitionPatterns(name string) []*regexp.Regexp {
	n := regexp.QuoteMeta(name)
	// Identifier boundary that also treats $ as a word character.
	b := `(?:^|[^\w$])`
	return []*regexp.Regexp{
		regexp.MustCompile(b + `function\s*\*?\s*` + n + `\s*\(`),
		regexp.MustCompile(b + `def\s+` + n + `\s*\(`),
		regexp.MustCompile(b + n + `\s*=\s*(?:async\s*)?(?:function\b|\([^)]*\)\s*=>|[A-Za-z_$][\w$]*\s*=>)`),
		regexp.MustCompile(b + n + `\s*:\s*(?:async\s+)?function\b`),
	}
}

// signaturePattern matches a Java signature whose parameters continue on
// the next line.
func signaturePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`^\s*(?:[\w<>\[\],.?@]+\s+)+` + regexp.QuoteMeta(name) + `\s*\([^)]*$`)
}

type nameMatcher struct {
	name      string
	needle    []byte
	patterns  []*regexp.Regexp
	signature *regexp.Regexp
}

func newNameMatcher(name string) nameMatcher {
	return nameMatcher{
		name:      name,
		needle:    []byte(name),
		patterns:  definitionPatterns(name),
		signature: signaturePattern(name),
	}
}

func (m nameMatcher) match(line string) bool {
	for _, re := range m.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return m.signature.MatchString(line) && !statementStart.MatchString(line)
}

// Backfill runs a heuristic text scan for names, typically the ones Locate
// reported missing. Files are read directly rather than through the cache.
func (c *Correlator) Backfill(ctx context.Context, names []string, set *discover.Set) (Result, error) {
	matchers := make([]nameMatcher, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		matchers = append(matchers, newNameMatcher(n))
	}

	return c.scan(ctx, names, set, func(ctx context.Context, abs string, e discover.FileEntry, _ map[string]struct{}) ([]model.FunctionLocation, error) {
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, err
		}
		return matchContent(content, e.Path, matchers), nil
	})
}

func matchContent(content []byte, path string, matchers []nameMatcher) []model.FunctionLocation {
	var candidates []nameMatcher
	for _, m := range matchers {
		if bytes.Contains(content, m.needle) {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var out []model.FunctionLocation
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSuffix(line, "\r")
		for _, m := range candidates {
			if !strings.Contains(line, m.name) || !m.match(line) {
				continue
			}
			out = append(out, model.FunctionLocation{
				Name: m.name,
				File: path,
				Line: i + 1,
				Kind: model.Heuristic,
			})
		}
	}
	return out
}
