package render

import (
	"context"
	"errors"

	"captioner/internal/captions"
	"captioner/internal/subtitles"
)

var (
	// ErrCompositionNotFound is returned when a bundle lacks the requested composition.
	ErrCompositionNotFound = errors.New("composition not found")
	// ErrRenderFailed marks a failed ffmpeg render.
	ErrRenderFailed = errors.New("render failed")
)

// Metadata is what the orchestrator needs to know about a source video.
type Metadata struct {
	// DurationSeconds is zero when the container reports no usable duration.
	DurationSeconds float64
	Width           int
	Height          int
	FrameRate       float64
	HasAudio        bool
}

// Probe reads source video metadata.
type Probe interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// BundleRequest describes the workspace a render needs.
type BundleRequest struct {
	JobID string
}

// Bundle is a prepared render workspace.
type Bundle struct {
	Location string
}

// Bundler prepares render workspaces.
type Bundler interface {
	Bundle(ctx context.Context, req BundleRequest) (Bundle, error)
}

// InputProps are the caller-provided inputs to a composition.
type InputProps struct {
	VideoSrc string            `json:"videoSrc"`
	Captions captions.Timeline `json:"captions"`
	Style    subtitles.Style   `json:"style"`
}

// Composition is a resolved, renderable layout.
type Composition struct {
	ID               string
	Width            int
	Height           int
	FPS              int
	DurationInFrames int
	// SubtitlePath is the burn-in script generated for the props.
	SubtitlePath string
	Props        InputProps
}

// DurationSeconds is the rendered length implied by the frame count.
func (c Composition) DurationSeconds() float64 {
	if c.FPS <= 0 {
		return 0
	}
	return float64(c.DurationInFrames) / float64(c.FPS)
}

// CompositionResolver looks up a composition inside a bundle.
type CompositionResolver interface {
	SelectComposition(ctx context.Context, location, id string, props InputProps) (Composition, error)
}

// RenderRequest is one render invocation.
type RenderRequest struct {
	Composition    Composition
	ServeURL       string
	Codec          string
	OutputLocation string
	InputProps     InputProps
	// OnProgress receives completion fractions in [0, 1].
	OnProgress func(fraction float64)
	// HasAudio copies the source audio track when set.
	HasAudio bool
}

// Renderer produces the output video.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) error
}
