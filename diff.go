package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sayantanmandal1/function-dependency-warner/internal/impact"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff [PATCH]",
		Short: "Report the impact of the functions a unified diff changes",
		Long: `Read a unified diff (from PATCH, or stdin when PATCH is omitted or "-"),
find the function enclosing every changed line, and report the impact of
each one that appears in the dependency document.

Examples:
  git diff | funcwarn diff
  funcwarn diff change.patch -f toon`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := readPatch(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			e, err := a.newEngine(true)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			res, err := impact.ChangedFunctions(ctx, patch, a.cfg.Root, e.cache)
			if err != nil {
				return err
			}
			for _, w := range res.Warnings {
				a.logger.Warn("diff: file skipped", "reason", w)
			}

			g := e.store.Current()
			var reports []*model.Report
			for _, name := range res.Names() {
				if !g.Has(name) {
					continue
				}
				rep, err := e.orch.ComputeImpact(ctx, name)
				if err != nil {
					return err
				}
				reports = append(reports, rep)
			}
			return a.newRenderer().Diff(res, reports)
		},
	}
}

func readPatch(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading patch: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading patch: %w", err)
	}
	return data, nil
}
