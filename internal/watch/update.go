package watch

import tea "github.com/charmbracelet/bubbletea"

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.Quit = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		// Leave room for the percentage label.
		if w := msg.Width - 12; w > 10 {
			m.width = min(w, 80)
		}

	case TickMsg:
		if m.Done {
			return m, nil
		}
		return m, tea.Batch(pollProgress(m.source, m.jobID), tickCmd(m.interval))

	case ProgressMsg:
		if msg.Err != nil {
			m.Err = msg.Err
			return m, nil
		}
		m.Err = nil
		m.Progress = msg.Value
		if m.Progress >= 100 {
			m.Done = true
			return m, tea.Quit
		}
	}
	return m, nil
}
