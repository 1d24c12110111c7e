package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sayantanmandal1/function-dependency-warner/internal/discover"
	"github.com/sayantanmandal1/function-dependency-warner/internal/lang"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

func newFunctionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "functions [PATH...]",
		Short: "List the function definitions found in files or directories",
		Long: `List every function definition the extractors find. Each PATH may be a
file or a directory; with no PATH the workspace root is scanned.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.newEngine(false)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			var locs []model.FunctionLocation
			if len(args) == 0 {
				set, err := e.lister.List(ctx)
				if err != nil {
					return err
				}
				locs, err = a.extractSet(ctx, e, set, "")
				if err != nil {
					return err
				}
			}
			for _, p := range args {
				found, err := a.extractPath(ctx, e, p)
				if err != nil {
					return err
				}
				locs = append(locs, found...)
			}
			sort.SliceStable(locs, func(i, j int) bool { return locs[i].Less(locs[j]) })
			return a.newRenderer().Functions(locs)
		},
	}
}

func (a *app) extractPath(ctx context.Context, e *engine, p string) ([]model.FunctionLocation, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		set, err := discover.Files(p, e.lister.Options)
		if err != nil {
			return nil, err
		}
		return a.extractSet(ctx, e, set, p)
	}
	if lang.ForPath(p) == nil {
		return nil, fmt.Errorf("%s: unsupported file type", p)
	}
	locs, err := e.cache.GetOrCompute(ctx, p)
	if err != nil {
		return nil, err
	}
	for i := range locs {
		locs[i].File = filepath.ToSlash(p)
	}
	return locs, nil
}

// extractSet collects definitions from every file in set. File paths are
// reported under prefix. Unreadable files are logged and skipped.
func (a *app) extractSet(ctx context.Context, e *engine, set *discover.Set, prefix string) ([]model.FunctionLocation, error) {
	for _, w := range set.Warnings {
		a.logger.Warn("scan", "error", w)
	}
	var out []model.FunctionLocation
	for _, f := range set.Files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		locs, err := e.cache.GetOrCompute(ctx, set.Abs(f))
		if err != nil {
			a.logger.Warn("skipping file", "file", f.Path, "error", err)
			continue
		}
		name := f.Path
		if prefix != "" {
			name = filepath.ToSlash(filepath.Join(prefix, f.Path))
		}
		for _, l := range locs {
			l.File = name
			out = append(out, l)
		}
	}
	return out, nil
}
