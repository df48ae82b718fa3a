// Package bootstrap assembles captioner's services from configuration.
// The daemon and the CLI share it so a render started from either path uses
// the same stores, transports, and stage implementations.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"captioner/internal/api"
	"captioner/internal/config"
	"captioner/internal/media/audio"
	"captioner/internal/notifications"
	"captioner/internal/preflight"
	"captioner/internal/progress"
	"captioner/internal/publish"
	"captioner/internal/render"
	"captioner/internal/transcription"
	"captioner/internal/workflow"
)

// Services holds the wired pipeline.
type Services struct {
	Config       *config.Config
	Logger       *slog.Logger
	Tracker      *progress.Tracker
	Notifier     notifications.Service
	Publisher    publish.Publisher
	Transcriber  transcription.Transcriber
	Orchestrator *workflow.Orchestrator
	Captions     *workflow.CaptionJob

	closers []func() error
}

// Build constructs every service named by cfg. Close releases what Build opened.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: configuration unavailable")
	}
	s := &Services{Config: cfg, Logger: logger}

	store, err := progress.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open progress store: %w", err)
	}
	s.Tracker = progress.NewTracker(store, logger, progress.Options{Retention: cfg.ProgressRetention()})
	s.closers = append(s.closers, s.Tracker.Close)

	notifier, closeNotifier, err := notifications.NewService(cfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("notifications: %w", err)
	}
	s.Notifier = notifier
	s.closers = append(s.closers, closeNotifier)

	if s.Publisher, err = publish.New(ctx, cfg); err != nil {
		s.Close()
		return nil, err
	}

	if s.Transcriber, err = transcription.New(cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	s.Captions = workflow.NewCaptionJob(
		audio.NewExtractor(cfg.FFmpegBinary(), logger),
		s.Transcriber,
		s.Notifier,
		cfg.FFmpegBinary(),
		logger,
	)

	s.Orchestrator, err = workflow.NewOrchestrator(workflow.SettingsFromConfig(cfg), workflow.Collaborators{
		Probe: render.NewFFprobe(cfg.FFprobeBinary()),
		Bundler: render.NewDirBundler(render.BundlerOptions{
			Root:          filepath.Join(cfg.Paths.StateDir, "bundles"),
			CompositionID: cfg.Render.CompositionID,
			Width:         cfg.Render.Width,
			Height:        cfg.Render.Height,
			FPS:           cfg.Render.FPS,
		}, logger),
		Resolver:  render.ManifestResolver{},
		Renderer:  render.NewFFmpeg(cfg.FFmpegBinary(), logger),
		Tracker:   s.Tracker,
		Notifier:  s.Notifier,
		Publisher: s.Publisher,
	}, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Router returns the HTTP handler for the wired services.
func (s *Services) Router() *gin.Engine {
	// Validate guarantees both directories sit inside public_dir.
	uploadURL, _ := s.Config.PublicURLPath(s.Config.Paths.UploadDir)
	renderURL, _ := s.Config.PublicURLPath(s.Config.Paths.RenderDir)
	return api.NewRouter(api.Options{
		Renderer:  s.Orchestrator,
		Captioner: s.Captions,
		Progress:  s.Tracker,
		Setup: func(ctx context.Context) preflight.SetupReport {
			return preflight.CheckSetup(ctx, s.Config)
		},
		UploadDir:      s.Config.Paths.UploadDir,
		RenderDir:      s.Config.Paths.RenderDir,
		UploadURL:      uploadURL,
		RenderURL:      renderURL,
		MaxUploadBytes: s.Config.Upload.MaxBytes,
		Logger:         s.Logger,
	})
}

// Close releases stores and transports in reverse order of acquisition.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if s.closers[i] == nil {
			continue
		}
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
