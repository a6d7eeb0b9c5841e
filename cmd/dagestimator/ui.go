package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"dagestimator/internal/core/ports"
	"dagestimator/internal/data/history"
	"dagestimator/internal/output"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	headerStyle = cellStyle.Bold(true).Foreground(lipgloss.Color("#64748B"))
)

func printResult(out io.Writer, res ports.AnalyzeResult, withTable bool) {
	if withTable {
		fmt.Fprint(out, output.RenderSummary(res.Result))
	}
	fmt.Fprintln(out, statusStyle.Render(fmt.Sprintf("run %s (%s frontend) finished in %s",
		res.RunID, res.Frontend, res.Duration.Round(time.Millisecond))))
	for _, path := range res.Written {
		fmt.Fprintln(out, statusStyle.Render("  wrote "+path))
	}
	if res.Saved {
		fmt.Fprintln(out, statusStyle.Render("  saved to history"))
	}
}

func errorLine(err error) string {
	return failureStyle.Render("analysis failed: ") + err.Error()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))).
		Headers(headers...).
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func renderRuns(runs []history.Run) string {
	if len(runs) == 0 {
		return statusStyle.Render("no runs recorded") + "\n"
	}
	t := newTable("ID", "TIME", "PROGRAM", "FRONTEND", "ROUTINES", "FAILED", "WIDTH", "DEPTH", "DURATION")
	for _, run := range runs {
		t.Row(
			run.ID,
			run.Timestamp.Local().Format(time.DateTime),
			run.Program,
			run.Frontend,
			strconv.Itoa(run.Routines),
			strconv.Itoa(run.Failures),
			strconv.Itoa(run.Width),
			strconv.Itoa(run.Depth),
			run.Duration.String(),
		)
	}
	return t.Render() + "\n"
}

func renderRun(run *history.Run) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Run %s", run.ID)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "program %s, %s frontend, input %s\n", run.Program, run.Frontend, run.Input)
	fmt.Fprintf(&b, "recorded %s, took %s\n", run.Timestamp.Local().Format(time.DateTime), run.Duration)

	t := newTable("REGION", "KIND", "INSTR", "BLOCKS", "READS", "WRITES", "CALLS", "WIDTH", "DEPTH", "STATUS")
	for _, r := range run.Regions {
		state := "ok"
		switch {
		case r.Error != "":
			state = "error: " + r.Error
		case r.Skipped:
			state = "skipped"
		}
		t.Row(
			r.Path,
			r.Kind,
			strconv.Itoa(r.Instructions),
			strconv.Itoa(r.Blocks),
			strconv.Itoa(r.Reads),
			strconv.Itoa(r.Writes),
			strconv.Itoa(r.Calls),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Depth),
			state,
		)
	}
	b.WriteString(t.Render())
	b.WriteString("\n")
	if run.Failures > 0 {
		b.WriteString(failureStyle.Render(fmt.Sprintf("%d regions failed", run.Failures)))
		b.WriteString("\n")
	}
	return b.String()
}
