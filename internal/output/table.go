package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dagestimator/internal/engine/analysis"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#64748B")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	moduleStyle = cellStyle.Bold(true)

	errorStyle = cellStyle.Foreground(lipgloss.Color("#F87171"))

	skippedStyle = cellStyle.Foreground(lipgloss.Color("#FBBF24"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))
)

// RenderSummary draws every region record as a table, followed by a status
// line for the run.
func RenderSummary(res *analysis.Result) string {
	if res == nil || res.Module == nil {
		return ""
	}

	type row struct {
		cells []string
		rec   *analysis.Record
	}
	var rows []row
	var add func(rec *analysis.Record, depth int)
	add = func(rec *analysis.Record, depth int) {
		state := "ok"
		switch {
		case rec.Error != "":
			state = "error"
		case rec.Skipped:
			state = "skipped"
		}
		rows = append(rows, row{
			rec: rec,
			cells: []string{
				strings.Repeat("  ", depth) + rec.Name,
				string(rec.Kind),
				strconv.Itoa(rec.Instructions),
				strconv.Itoa(rec.Blocks),
				strconv.Itoa(rec.Reads),
				strconv.Itoa(rec.Writes),
				strconv.Itoa(rec.Calls),
				strconv.Itoa(rec.Width),
				strconv.Itoa(rec.Depth),
				state,
			},
		})
		for _, sub := range rec.SubLoops {
			add(sub, depth+1)
		}
		for _, routine := range rec.Routines {
			add(routine, depth+1)
		}
	}
	add(res.Module, 0)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))).
		Headers("REGION", "KIND", "INSTR", "BLOCKS", "READS", "WRITES", "CALLS", "WIDTH", "DEPTH", "STATUS").
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			rec := rows[r].rec
			switch {
			case rec.Error != "":
				return errorStyle
			case rec.Skipped:
				return skippedStyle
			case rec.Kind == analysis.RegionModule:
				return moduleStyle
			default:
				return cellStyle
			}
		})
	for _, r := range rows {
		t.Row(r.cells...)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Program " + res.Module.Name))
	b.WriteString("\n")
	b.WriteString(t.Render())
	b.WriteString("\n")
	if len(res.Failures) == 0 {
		b.WriteString(successStyle.Render(fmt.Sprintf("%d routines analyzed, width %d, depth %d",
			len(res.Routines), res.Module.Width, res.Module.Depth)))
	} else {
		b.WriteString(errorStyle.UnsetPadding().Render(fmt.Sprintf("%d routines analyzed, %d regions failed",
			len(res.Routines), len(res.Failures))))
		for _, f := range res.Failures {
			b.WriteString(fmt.Sprintf("\n  %s: %v", f.Path, f.Err))
		}
	}
	b.WriteString("\n")
	return b.String()
}
