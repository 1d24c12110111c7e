package main

import (
	"github.com/spf13/cobra"
)

func newImpactCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "impact FUNCTION...",
		Short: "Report the functions affected by changing FUNCTION",
		Long: `Report every function transitively affected by a change to FUNCTION,
with the file and line of each definition found in the workspace.

Examples:
  funcwarn impact getTaxRate
  funcwarn impact --direction depends-on --deps deps.yaml calculateTotal
  funcwarn impact -f json getTaxRate`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.newEngine(true)
			if err != nil {
				return err
			}
			defer e.Close()

			r := a.newRenderer()
			for _, name := range args {
				rep, err := e.orch.ComputeImpact(cmd.Context(), name)
				if err != nil {
					return err
				}
				if err := r.Report(rep); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
