package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"captioner/internal/subtitles"
)

// ManifestResolver resolves compositions from a bundle manifest and writes
// the subtitle script for the requested props into the bundle.
type ManifestResolver struct{}

// SelectComposition implements CompositionResolver.
func (ManifestResolver) SelectComposition(ctx context.Context, location, id string, props InputProps) (Composition, error) {
	if err := ctx.Err(); err != nil {
		return Composition{}, err
	}
	manifest, err := ReadManifest(location)
	if err != nil {
		return Composition{}, fmt.Errorf("%w: %w", ErrCompositionNotFound, err)
	}
	var entry *ManifestComposition
	for i := range manifest.Compositions {
		if manifest.Compositions[i].ID == id {
			entry = &manifest.Compositions[i]
			break
		}
	}
	if entry == nil {
		return Composition{}, fmt.Errorf("%w: %q in %s", ErrCompositionNotFound, id, location)
	}

	scriptPath := filepath.Join(location, subtitleName)
	file, err := os.Create(scriptPath)
	if err != nil {
		return Composition{}, fmt.Errorf("create subtitle script: %w", err)
	}
	canvas := subtitles.Canvas{Width: entry.Width, Height: entry.Height, Title: entry.ID}
	if err := subtitles.RenderASS(file, props.Captions, props.Style, canvas); err != nil {
		_ = file.Close()
		return Composition{}, err
	}
	if err := file.Close(); err != nil {
		return Composition{}, fmt.Errorf("close subtitle script: %w", err)
	}

	return Composition{
		ID:               entry.ID,
		Width:            entry.Width,
		Height:           entry.Height,
		FPS:              entry.FPS,
		DurationInFrames: entry.DurationInFrames,
		SubtitlePath:     scriptPath,
		Props:            props,
	}, nil
}
