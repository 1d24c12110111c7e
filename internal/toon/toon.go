// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeReport converts an impact report into TOON format.
func EncodeReport(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("function: %s", encodeValue(r.ChangedFunction)))
	parts = append(parts, fmt.Sprintf("graph_generation: %d", r.Generation))
	parts = append(parts, fmt.Sprintf("final: %t", r.Final))
	if r.Truncated {
		parts = append(parts, "truncated: true")
	}

	parentOf := make(map[string]string, len(r.Dependents))
	for parent, children := range r.Parents {
		for _, c := range children {
			parentOf[c] = parent
		}
	}

	var depRows [][]string
	for _, d := range r.Dependents {
		depRows = append(depRows, []string{d, strconv.Itoa(r.Depth[d]), parentOf[d]})
	}
	parts = append(parts, formatTabular("dependents", []string{"name", "depth", "parent"}, depRows))

	var locRows [][]string
	for _, name := range r.Names() {
		for _, loc := range r.Locations[name] {
			locRows = append(locRows, locationRow(loc))
		}
	}
	parts = append(parts, formatTabular("locations", []string{"name", "file", "line", "kind"}, locRows))

	if len(r.Missing) > 0 {
		parts = append(parts, formatList("missing", r.Missing))
	}
	if len(r.Warnings) > 0 {
		parts = append(parts, formatList("warnings", r.Warnings))
	}

	return strings.Join(parts, "\n")
}

// EncodeFunctions converts a list of definitions into a TOON table.
func EncodeFunctions(locs []model.FunctionLocation) string {
	rows := make([][]string, 0, len(locs))
	for _, loc := range locs {
		rows = append(rows, locationRow(loc))
	}
	return formatTabular("functions", []string{"name", "file", "line", "kind"}, rows)
}

func locationRow(loc model.FunctionLocation) []string {
	return []string{loc.Name, loc.File, strconv.Itoa(loc.Line), string(loc.Kind)}
}

func formatList(name string, values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeValue(v)
	}
	return fmt.Sprintf("%s[%d]: %s", name, len(values), strings.Join(encoded, ","))
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
