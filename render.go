package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sayantanmandal1/function-dependency-warner/internal/impact"
	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
	"github.com/sayantanmandal1/function-dependency-warner/internal/toon"
)

var (
	styleWarn    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F4D03F"))
	styleName    = lipgloss.NewStyle().Bold(true)
	styleMissing = lipgloss.NewStyle().Foreground(lipgloss.Color("#E74C3C"))
	styleMuted   = lipgloss.NewStyle().Faint(true)
)

// renderer writes results in one of the configured formats.
type renderer struct {
	w      io.Writer
	format string
	styled bool
}

func (a *app) newRenderer() *renderer {
	return &renderer{w: a.stdout, format: a.cfg.Format, styled: isTerminal(a.stdout)}
}

func (r *renderer) paint(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

// Report writes one impact report.
func (r *renderer) Report(rep *model.Report) error {
	switch r.format {
	case "json":
		return r.json(rep)
	case "toon":
		_, err := fmt.Fprintln(r.w, toon.EncodeReport(rep))
		return err
	default:
		_, err := fmt.Fprintln(r.w, r.reportText(rep))
		return err
	}
}

func (r *renderer) reportText(rep *model.Report) string {
	var b strings.Builder
	changed := r.paint(styleName, rep.ChangedFunction)
	if len(rep.Dependents) == 0 {
		fmt.Fprintf(&b, "Changing '%s' affects no other functions", changed)
	} else {
		fmt.Fprintf(&b, "%s Changing '%s' may affect: ", r.paint(styleWarn, "Warning:"), changed)
		parts := make([]string, 0, len(rep.Dependents))
		for _, dep := range rep.Dependents {
			locs := rep.Locations[dep]
			if len(locs) == 0 {
				parts = append(parts, dep+" "+r.paint(styleMissing, "(location not found)"))
				continue
			}
			for _, l := range locs {
				parts = append(parts, fmt.Sprintf("%s (%s:%d)", dep, l.File, l.Line))
			}
		}
		b.WriteString(strings.Join(parts, ", "))
	}
	if locs := rep.Locations[rep.ChangedFunction]; len(locs) > 0 {
		defs := make([]string, len(locs))
		for i, l := range locs {
			defs[i] = fmt.Sprintf("%s:%d", l.File, l.Line)
		}
		b.WriteString("\n" + r.paint(styleMuted, "  defined at "+strings.Join(defs, ", ")))
	}
	for _, w := range rep.Warnings {
		b.WriteString("\n" + r.paint(styleMuted, "  note: "+w))
	}
	return b.String()
}

// Functions writes a list of definitions.
func (r *renderer) Functions(locs []model.FunctionLocation) error {
	switch r.format {
	case "json":
		if locs == nil {
			locs = []model.FunctionLocation{}
		}
		return r.json(locs)
	case "toon":
		_, err := fmt.Fprintln(r.w, toon.EncodeFunctions(locs))
		return err
	default:
		for _, l := range locs {
			if _, err := fmt.Fprintf(r.w, "%s\t%s:%d\t%s\n", r.paint(styleName, l.Name), l.File, l.Line, l.Kind); err != nil {
				return err
			}
		}
		return nil
	}
}

type diffOutput struct {
	Functions []model.FunctionLocation `json:"functions"`
	Warnings  []string                 `json:"warnings,omitempty"`
	Reports   []*model.Report          `json:"reports"`
}

// Diff writes the functions a patch touches followed by their reports.
func (r *renderer) Diff(res *impact.DiffResult, reports []*model.Report) error {
	switch r.format {
	case "json":
		out := diffOutput{Functions: res.Functions, Warnings: res.Warnings, Reports: reports}
		if out.Functions == nil {
			out.Functions = []model.FunctionLocation{}
		}
		if out.Reports == nil {
			out.Reports = []*model.Report{}
		}
		return r.json(out)
	case "toon":
		parts := []string{toon.EncodeFunctions(res.Functions)}
		for _, rep := range reports {
			parts = append(parts, toon.EncodeReport(rep))
		}
		_, err := fmt.Fprintln(r.w, strings.Join(parts, "\n\n"))
		return err
	default:
		if len(res.Functions) == 0 {
			if _, err := fmt.Fprintln(r.w, "No changed functions"); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(r.w, "Changed functions:")
			for _, l := range res.Functions {
				fmt.Fprintf(r.w, "  %s (%s:%d)\n", r.paint(styleName, l.Name), l.File, l.Line)
			}
		}
		for _, w := range res.Warnings {
			fmt.Fprintln(r.w, r.paint(styleMuted, "  note: "+w))
		}
		for _, rep := range reports {
			if _, err := fmt.Fprintln(r.w, r.reportText(rep)); err != nil {
				return err
			}
		}
		return nil
	}
}

func (r *renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
