package impact

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/sayantanmandal1/function-dependency-warner/internal/locate"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// DiffResult lists the definitions enclosing the lines a patch changes.
type DiffResult struct {
	Functions []model.FunctionLocation
	Warnings  []string
}

// Names returns the distinct function names in first-seen order.
func (r *DiffResult) Names() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, f := range r.Functions {
		if _, ok := seen[f.Name]; ok {
			continue
		}
		seen[f.Name] = struct{}{}
		out = append(out, f.Name)
	}
	return out
}

// ChangedFunctions maps every added or removed line of a unified diff to the
// closest definition at or above it in the new version of the file. Paths in
// the patch are resolved against root. Deleted files are ignored; files that
// cannot be read are reported as warnings.
func ChangedFunctions(ctx context.Context, patch []byte, root string, src locate.Source) (*DiffResult, error) {
	fileDiffs, err := diff.ParseMultiFileDiff(patch)
	if err != nil {
		return nil, fmt.Errorf("parse diff: %w", err)
	}

	res := &DiffResult{}
	seen := map[model.FunctionLocation]struct{}{}

	for _, fd := range fileDiffs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		name := stripPrefix(fd.NewName)
		if name == "" {
			continue
		}
		lines := changedLines(fd)
		if len(lines) == 0 {
			continue
		}

		locs, err := src.GetOrCompute(ctx, filepath.Join(root, filepath.FromSlash(name)))
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		sort.SliceStable(locs, func(i, j int) bool { return locs[i].Line < locs[j].Line })

		for _, line := range lines {
			loc, ok := enclosing(locs, line)
			if !ok {
				continue
			}
			loc.File = name
			if _, dup := seen[loc]; dup {
				continue
			}
			seen[loc] = struct{}{}
			res.Functions = append(res.Functions, loc)
		}
	}
	return res, nil
}

// stripPrefix removes the "b/" added by git; "" means the file was deleted.
func stripPrefix(name string) string {
	if name == "" || name == "/dev/null" {
		return ""
	}
	if i := strings.IndexByte(name, '\t'); i >= 0 {
		name = name[:i]
	}
	return strings.TrimPrefix(name, "b/")
}

// changedLines returns the new-file line numbers touched by each hunk, in
// order. A removal is attributed to the line that now sits in its place.
func changedLines(fd *diff.FileDiff) []int {
	var out []int
	for _, h := range fd.Hunks {
		line := int(h.NewStartLine)
		if line == 0 {
			continue
		}
		for _, l := range bytes.Split(h.Body, []byte{'\n'}) {
			if len(l) == 0 {
				continue
			}
			switch l[0] {
			case '+':
				out = append(out, line)
				line++
			case '-':
				out = append(out, line)
			case ' ':
				line++
			}
		}
	}
	return out
}

// enclosing returns the definition with the greatest line <= line.
// locs must be sorted by line.
func enclosing(locs []model.FunctionLocation, line int) (model.FunctionLocation, bool) {
	i := sort.Search(len(locs), func(i int) bool { return locs[i].Line > line })
	if i == 0 {
		return model.FunctionLocation{}, false
	}
	return locs[i-1], true
}
