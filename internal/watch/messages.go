package watch

import "time"

// ProgressMsg carries one poll result.
type ProgressMsg struct {
	Value float64
	Err   error
}

// TickMsg triggers the next poll.
type TickMsg struct {
	Time time.Time
}
