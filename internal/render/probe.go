package render

import (
	"context"

	"captioner/internal/media/ffprobe"
)

// FFprobe implements Probe with the ffprobe binary.
type FFprobe struct {
	Binary string
}

// NewFFprobe returns a probe that runs binary.
func NewFFprobe(binary string) *FFprobe {
	return &FFprobe{Binary: binary}
}

// Probe implements Probe.
func (p *FFprobe) Probe(ctx context.Context, path string) (Metadata, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return Metadata{}, err
	}
	meta := Metadata{
		FrameRate: result.FrameRate(),
		HasAudio:  result.AudioStreamCount() > 0,
	}
	if duration, ok := result.DurationSeconds(); ok {
		meta.DurationSeconds = duration
	}
	if video, ok := result.VideoStream(); ok {
		meta.Width = video.Width
		meta.Height = video.Height
	}
	return meta, nil
}
