package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"captioner/internal/logging"
)

const (
	manifestName    = "manifest.json"
	manifestVersion = 1
	subtitleName    = "captions.ass"
)

// Manifest lists the compositions a bundle can render.
type Manifest struct {
	Version      int                   `json:"version"`
	CreatedAt    time.Time             `json:"created_at"`
	Compositions []ManifestComposition `json:"compositions"`
}

// ManifestComposition is a composition entry in a bundle manifest.
type ManifestComposition struct {
	ID     string `json:"id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	FPS    int    `json:"fps"`
	// DurationInFrames is the default before the orchestrator overrides it.
	DurationInFrames int `json:"duration_in_frames"`
}

// BundlerOptions configures a DirBundler.
type BundlerOptions struct {
	Root          string
	CompositionID string
	Width         int
	Height        int
	FPS           int
}

// DirBundler creates one workspace directory per render under Root.
type DirBundler struct {
	opts   BundlerOptions
	logger *slog.Logger
}

// NewDirBundler returns a bundler writing under opts.Root.
func NewDirBundler(opts BundlerOptions, logger *slog.Logger) *DirBundler {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.Width <= 0 {
		opts.Width = 1920
	}
	if opts.Height <= 0 {
		opts.Height = 1080
	}
	if strings.TrimSpace(opts.CompositionID) == "" {
		opts.CompositionID = "CaptionedVideo"
	}
	return &DirBundler{opts: opts, logger: logging.NewComponentLogger(logger, "bundler")}
}

// Bundle implements Bundler.
func (b *DirBundler) Bundle(ctx context.Context, req BundleRequest) (Bundle, error) {
	if err := ctx.Err(); err != nil {
		return Bundle{}, err
	}
	if err := os.MkdirAll(b.opts.Root, 0o755); err != nil {
		return Bundle{}, fmt.Errorf("create bundle root: %w", err)
	}
	prefix := "bundle-"
	if id := strings.TrimSpace(req.JobID); id != "" {
		prefix += filepath.Base(id) + "-"
	}
	dir, err := os.MkdirTemp(b.opts.Root, prefix)
	if err != nil {
		return Bundle{}, fmt.Errorf("create bundle dir: %w", err)
	}
	manifest := Manifest{
		Version:   manifestVersion,
		CreatedAt: time.Now().UTC(),
		Compositions: []ManifestComposition{{
			ID:               b.opts.CompositionID,
			Width:            b.opts.Width,
			Height:           b.opts.Height,
			FPS:              b.opts.FPS,
			DurationInFrames: b.opts.FPS * 10,
		}},
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		_ = os.RemoveAll(dir)
		return Bundle{}, fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return Bundle{}, fmt.Errorf("write manifest: %w", err)
	}
	logging.WithContext(ctx, b.logger).Debug("bundle prepared", logging.String("location", dir))
	return Bundle{Location: dir}, nil
}

// ReadManifest loads the manifest from a bundle directory.
func ReadManifest(location string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(location, manifestName))
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return Manifest{}, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}
	return manifest, nil
}
