package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/profiling-runtime/errors"
	"github.com/wippyai/profiling-runtime/hostop"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	handleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	typeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// printSummary lists the resources left after a run. Styling is only
// applied when w is a terminal.
func printSummary(w io.Writer, res []hostop.Resource, runErr error) {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	render := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	var b strings.Builder
	b.WriteString(render(titleStyle, "profiling run"))
	b.WriteByte('\n')
	switch {
	case runErr == nil:
		b.WriteString(render(okStyle, "status: ok"))
	case errors.IsFatal(runErr):
		b.WriteString(render(errorStyle, "status: aborted ("+string(errors.KindOf(runErr))+")"))
	default:
		b.WriteString(render(errorStyle, "status: failed ("+string(errors.KindOf(runErr))+")"))
	}
	b.WriteByte('\n')

	fmt.Fprintf(&b, "resources: %d\n", len(res))
	for _, r := range res {
		fmt.Fprintf(&b, "  %s %s\n",
			render(handleStyle, fmt.Sprintf("#%d", r.Handle)),
			render(typeStyle, r.Type.String()))
	}
	_, _ = io.WriteString(w, b.String())
}
