package progress

import (
	"math"
	"regexp"
	"strings"
)

// Status is the lifecycle of a tracked job.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// State is the persisted progress document for one job. Times are
// milliseconds since the Unix epoch.
type State struct {
	JobID      string  `json:"job_id,omitempty"`
	Progress   float64 `json:"progress"`
	Timestamp  int64   `json:"timestamp"`
	Status     Status  `json:"status,omitempty"`
	StartedAt  int64   `json:"started_at,omitempty"`
	FinishedAt int64   `json:"finished_at,omitempty"`
}

// Clamp bounds a progress value to [0, 100]. NaN reads as 0.
func Clamp(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

var unsafeIDChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// sanitizeID keeps job ids safe for use as file names and keys.
func sanitizeID(jobID string) string {
	cleaned := unsafeIDChars.ReplaceAllString(strings.TrimSpace(jobID), "_")
	return strings.Trim(cleaned, ".")
}
