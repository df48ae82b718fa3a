package watch

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultInterval = 500 * time.Millisecond
	defaultWidth    = 40
)

// Model is the bubbletea model for the progress view.
type Model struct {
	source   Source
	jobID    string
	interval time.Duration
	width    int

	Progress float64
	Err      error
	Done     bool
	Quit     bool
}

// Option customises a Model.
type Option func(*Model)

// WithInterval sets the poll interval.
func WithInterval(interval time.Duration) Option {
	return func(m *Model) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithWidth sets the bar width in cells.
func WithWidth(width int) Option {
	return func(m *Model) {
		if width > 0 {
			m.width = width
		}
	}
}

// NewModel builds a view polling source for jobID.
func NewModel(source Source, jobID string, opts ...Option) Model {
	m := Model{
		source:   source,
		jobID:    strings.TrimSpace(jobID),
		interval: defaultInterval,
		width:    defaultWidth,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		pollProgress(m.source, m.jobID),
		tickCmd(m.interval),
	)
}

// Run starts the view on the current terminal and returns the final model.
func Run(source Source, jobID string, opts ...Option) (Model, error) {
	final, err := tea.NewProgram(NewModel(source, jobID, opts...)).Run()
	if err != nil {
		return Model{}, err
	}
	model, _ := final.(Model)
	return model, nil
}
