package watch

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const pollTimeout = 3 * time.Second

func pollProgress(source Source, jobID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
		defer cancel()
		value, err := source.Progress(ctx, jobID)
		return ProgressMsg{Value: value, Err: err}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
