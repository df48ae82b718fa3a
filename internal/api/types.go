package api

import (
	"captioner/internal/captions"
	"captioner/internal/workflow"
)

// UploadResponse is returned after a video is captioned.
type UploadResponse struct {
	Success   bool              `json:"success"`
	VideoPath string            `json:"videoPath"`
	JobID     string            `json:"jobId"`
	Captions  captions.Timeline `json:"captions"`
}

// RenderResponse is returned after a render completes.
type RenderResponse = workflow.RenderResult

// ProgressResponse reports a job's percentage.
type ProgressResponse struct {
	Progress float64 `json:"progress"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
