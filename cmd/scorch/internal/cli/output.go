package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/types"
)

// OutputFormat selects how commands print results.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// ParseOutputFormat validates a --output value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", WrapError(ExitInvalidInput, fmt.Sprintf("unknown output format %q (text|json)", s), nil)
	}
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	healthyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Title renders a section title.
func Title(s string) string {
	return titleStyle.Render(s)
}

// Health renders a health state in its color.
func Health(h types.HealthState) string {
	switch h {
	case types.HealthStateHealthy:
		return healthyStyle.Render(h.String())
	case types.HealthStateDegraded:
		return warnStyle.Render(h.String())
	default:
		return errorStyle.Render(h.String())
	}
}

// Bool renders yes in green and no in red.
func Bool(v bool) string {
	if v {
		return healthyStyle.Render("yes")
	}
	return errorStyle.Render("no")
}

// KeyValues renders aligned label: value lines inside a rounded box.
func KeyValues(title string, pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		if len(p[0]) > width {
			width = len(p[0])
		}
	}
	lines := make([]string, 0, len(pairs)+1)
	if title != "" {
		lines = append(lines, Title(title))
	}
	for _, p := range pairs {
		label := labelStyle.Render(fmt.Sprintf("%-*s", width, p[0]))
		lines = append(lines, label+"  "+p[1])
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

// Table renders rows under bold headers with columns padded to the widest
// visible cell.
func Table(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(pad(headerStyle.Render(strings.ToUpper(h)), widths[i], i == len(headers)-1))
	}
	b.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			b.WriteString(pad(cell, widths[i], i == len(row)-1))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func pad(cell string, width int, last bool) string {
	if last {
		return cell
	}
	return cell + strings.Repeat(" ", width-lipgloss.Width(cell)+2)
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
