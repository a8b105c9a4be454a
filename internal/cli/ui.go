package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/geohistoricaldata/cassinigraph/pkg/errors"
	"github.com/geohistoricaldata/cassinigraph/pkg/method"
	"github.com/geohistoricaldata/cassinigraph/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleHeader = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + msg)
}

// printError prints an error message.
func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconError.Render(iconError) + " " + msg)
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(msg))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + msg)
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Println("  " + StyleDim.Render(msg))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printNewline prints an empty line.
func printNewline() {
	fmt.Println()
}

// =============================================================================
// Tables
// =============================================================================

// printSummary prints one row per method run, then one line per failure.
func printSummary(results []*pipeline.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Println(summaryTable(results))

	for _, res := range results {
		if n := res.Stats.Inconsistencies; n > 0 {
			printWarning("%s: %d edge weight inconsistencies", res.Method.Name, n)
		}
		if res.OK() {
			continue
		}
		printError("%s: %s", res.Method.Name, errors.UserMessage(res.Err))
		if code := errors.GetCode(res.Err); code != "" {
			printDetail("code: %s", code)
		}
	}
}

func summaryTable(results []*pipeline.Result) string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		st := res.Stats
		status := styleIconSuccess.Render(iconSuccess)
		if !res.OK() {
			status = styleIconError.Render(iconError)
		}
		edges := strconv.Itoa(st.ForestEdges)
		if res.Method.Kind == method.KindCells {
			edges = strconv.Itoa(st.Links)
		}
		rows = append(rows, []string{
			status,
			res.Method.Name,
			strconv.Itoa(st.Nodes),
			edges,
			strconv.Itoa(st.Components),
			strconv.Itoa(st.Isolated),
			st.Total().Round(time.Millisecond).String(),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Method", "Nodes", "Links", "Components", "Isolated", "Time").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if col >= 2 {
				return lipgloss.NewStyle().Foreground(colorCyan).Align(lipgloss.Right)
			}
			return lipgloss.NewStyle()
		}).
		String()
}

// methodsTable renders the method table.
func methodsTable(tbl *method.Table) string {
	var rows [][]string
	for _, m := range tbl.Methods() {
		threshold := "-"
		if m.NeedsThreshold() {
			threshold = "required"
		}
		rows = append(rows, []string{
			m.Name,
			string(m.Kind),
			threshold,
			describeTypes(m.Predicate.Toponyms),
			describeLabels(m.Predicate.ChefsLieux),
			m.Description,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Method", "Kind", "Threshold", "Toponyms", "Chefs-lieux", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleHeader
			case col == 0:
				return StyleTitle
			case col == 5:
				return StyleDim
			}
			return lipgloss.NewStyle()
		}).
		String()
}

func describeTypes(f method.TypeFilter) string {
	strs := func(xs []int) []string {
		out := make([]string, len(xs))
		for i, x := range xs {
			out[i] = strconv.Itoa(x)
		}
		return out
	}
	return describeFilter(f.Skip, strs(f.Include), strs(f.Exclude))
}

func describeLabels(f method.LabelFilter) string {
	return describeFilter(f.Skip, f.Include, f.Exclude)
}

func describeFilter(skip bool, include, exclude []string) string {
	switch {
	case skip:
		return "none"
	case len(include) > 0 && len(exclude) > 0:
		return strings.Join(include, ", ") + " except " + strings.Join(exclude, ", ")
	case len(include) > 0:
		return strings.Join(include, ", ")
	case len(exclude) > 0:
		return "all except " + strings.Join(exclude, ", ")
	}
	return "all"
}

// pluralize returns "1 method" or "n methods".
func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
