// Package parse extracts function-like definitions from source files, using
// tree-sitter for JavaScript and TypeScript and line patterns for Java and
// Python.
package parse

import (
	"bytes"
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/sayantanmandal1/function-dependency-warner/internal/lang"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// ExtractionError reports a file whose syntax tree could not be built.
// Callers treat the file as contributing no definitions.
type ExtractionError struct {
	File string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.File, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract returns the definitions found in content, in source order.
// path selects the language by extension and is copied into every location.
// Unsupported extensions and empty content yield nil without error.
func Extract(ctx context.Context, path string, content []byte) ([]model.FunctionLocation, error) {
	l := lang.ForPath(path)
	if l == nil || len(content) == 0 {
		return nil, nil
	}

	switch l.Strategy {
	case lang.Structured:
		return extractTree(ctx, l, path, content)
	case lang.LineRegex:
		return extractLines(l, path, content), nil
	}
	return nil, nil
}

func extractTree(ctx context.Context, l *lang.Language, path string, content []byte) ([]model.FunctionLocation, error) {
	parser := l.NewParser()
	defer parser.Close()

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, &ExtractionError{File: path, Err: err}
	}
	if tree == nil {
		return nil, &ExtractionError{File: path, Err: fmt.Errorf("no syntax tree")}
	}
	defer tree.Close()

	var locs []model.FunctionLocation

	// Depth-first, children pushed in reverse so they pop in source order.
	stack := []*sitter.Node{tree.RootNode()}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if loc, ok := definitionAt(node, content); ok {
			loc.File = path
			locs = append(locs, loc)
		}

		for i := int(node.NamedChildCount()) - 1; i >= 0; i-- {
			if child := node.NamedChild(i); child != nil {
				stack = append(stack, child)
			}
		}
	}

	return locs, nil
}

func definitionAt(node *sitter.Node, source []byte) (model.FunctionLocation, bool) {
	var (
		name *sitter.Node
		kind model.Kind
	)

	switch node.Type() {
	case "function_declaration", "generator_function_declaration":
		name = node.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			return model.FunctionLocation{}, false
		}
		kind = model.Declaration

	case "variable_declarator":
		name = node.ChildByFieldName("name")
		value := node.ChildByFieldName("value")
		if name == nil || value == nil || name.Type() != "identifier" || !isFunctionValue(value) {
			return model.FunctionLocation{}, false
		}
		kind = model.Arrow

	case "method_definition":
		name = node.ChildByFieldName("name")
		if name == nil || name.Type() != "property_identifier" {
			return model.FunctionLocation{}, false
		}
		kind = model.Method

	default:
		return model.FunctionLocation{}, false
	}

	return model.FunctionLocation{
		Name: lang.NodeText(name, source),
		Line: int(name.StartPoint().Row) + 1,
		Kind: kind,
	}, true
}

func isFunctionValue(n *sitter.Node) bool {
	switch n.Type() {
	case "arrow_function", "function", "function_expression", "generator_function":
		return true
	}
	return false
}

func extractLines(l *lang.Language, path string, content []byte) []model.FunctionLocation {
	idx := l.NameIndex()
	if idx < 0 {
		return nil
	}

	var locs []model.FunctionLocation
	for i, line := range bytes.Split(content, []byte{'\n'}) {
		line = bytes.TrimSuffix(line, []byte{'\r'})
		m := l.Pattern.FindSubmatch(line)
		if m == nil || len(m[idx]) == 0 {
			continue
		}
		locs = append(locs, model.FunctionLocation{
			Name: string(m[idx]),
			File: path,
			Line: i + 1,
			Kind: l.Kind,
		})
	}
	return locs
}
