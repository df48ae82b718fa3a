package watch

import (
	"fmt"
	"math"
	"strings"

	"captioner/internal/progress"
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	title := "Render progress"
	if m.jobID != "" {
		title += " · " + m.jobID
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	b.WriteString(bar(m.Progress, m.width))
	fmt.Fprintf(&b, " %5.1f%%\n\n", progress.Clamp(m.Progress))

	switch {
	case m.Done:
		b.WriteString(StatusStyle.Render("Render complete"))
	case m.Err != nil:
		b.WriteString(ErrorStyle.Render("Poll failed: " + m.Err.Error()))
	default:
		b.WriteString(InfoStyle.Render("Press 'q' or Ctrl+C to quit"))
	}
	b.WriteString("\n")
	return b.String()
}

func bar(value float64, width int) string {
	if width <= 0 {
		width = defaultWidth
	}
	filled := int(math.Round(progress.Clamp(value) / 100 * float64(width)))
	return FilledStyle.Render(strings.Repeat("█", filled)) +
		TrackStyle.Render(strings.Repeat("░", width-filled))
}
