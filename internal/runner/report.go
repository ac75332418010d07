package runner

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Semantic colors for the run report.
var (
	successColor = lipgloss.Color("#8BC34A")
	failureColor = lipgloss.Color("#e53935")
	mutedColor   = lipgloss.Color("#6b7280")

	passStyle   = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(failureColor).Bold(true)
	scriptStyle = lipgloss.NewStyle().Foreground(mutedColor)
	detailStyle = lipgloss.NewStyle().Foreground(mutedColor)
)

// Render formats a run result for the terminal.
func Render(result *Result) string {
	var b strings.Builder
	for _, test := range result.Tests {
		if test.Passed {
			fmt.Fprintf(&b, "%s %s %s\n",
				passStyle.Render("PASS"), test.Name, scriptStyle.Render(test.Script))
			continue
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			failStyle.Render("FAIL"), test.Name, scriptStyle.Render(test.Script))
		for _, line := range strings.Split(FormatExplanation(test.Message), "\n") {
			fmt.Fprintf(&b, "    %s\n", detailStyle.Render(line))
		}
	}

	summary := fmt.Sprintf("%d tests, %d failed in %s",
		len(result.Tests), result.Failed, result.Duration.Round(time.Millisecond))
	if result.Failed > 0 {
		b.WriteString(failStyle.Render(summary))
	} else {
		b.WriteString(passStyle.Render(summary))
	}
	b.WriteString("\n")
	return b.String()
}

// FormatExplanation expands the joined one-string report form back into
// display lines: every continuation marker becomes an indented line.
func FormatExplanation(message string) string {
	return strings.ReplaceAll(message, "\n~", "\n  ")
}
