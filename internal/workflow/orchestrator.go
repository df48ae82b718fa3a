package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/notifications"
	"captioner/internal/publish"
	"captioner/internal/render"
	"captioner/internal/services"
	"captioner/internal/subtitles"
)

// ProgressTracker receives job progress. Implementations never fail the caller.
type ProgressTracker interface {
	Reset(ctx context.Context, jobID string)
	Set(ctx context.Context, jobID string, value float64)
	Complete(ctx context.Context, jobID string)
	Fail(ctx context.Context, jobID string)
}

// Settings holds the orchestrator tunables.
type Settings struct {
	PublicDir             string
	RenderDir             string
	FPS                   int
	FallbackDuration      float64
	CompositionID         string
	Codec                 string
	ProbeCheckpoint       float64
	BundleCheckpoint      float64
	CompositionCheckpoint float64
	// StageTimeout bounds each stage; zero means only the caller's context applies.
	StageTimeout  time.Duration
	MaxConcurrent int
	OverlapPolicy captions.OverlapPolicy
	KeepBundles   bool
}

// SettingsFromConfig maps configuration onto orchestrator settings.
func SettingsFromConfig(cfg *config.Config) Settings {
	policy, err := captions.ParseOverlapPolicy(cfg.Captions.OverlapPolicy)
	if err != nil {
		policy = captions.PolicyReject
	}
	return Settings{
		PublicDir:             cfg.Paths.PublicDir,
		RenderDir:             cfg.Paths.RenderDir,
		FPS:                   cfg.Render.FPS,
		FallbackDuration:      cfg.Render.FallbackDurationSeconds,
		CompositionID:         cfg.Render.CompositionID,
		Codec:                 cfg.Render.Codec,
		ProbeCheckpoint:       cfg.Render.ProbeCheckpoint,
		BundleCheckpoint:      cfg.Render.BundleCheckpoint,
		CompositionCheckpoint: cfg.Render.CompositionCheckpoint,
		StageTimeout:          time.Duration(cfg.Render.StageTimeoutSeconds) * time.Second,
		MaxConcurrent:         cfg.Render.MaxConcurrent,
		OverlapPolicy:         policy,
		KeepBundles:           cfg.Render.KeepBundles,
	}
}

func (s Settings) withDefaults() Settings {
	if s.FPS <= 0 {
		s.FPS = 30
	}
	if s.FallbackDuration <= 0 {
		s.FallbackDuration = 10
	}
	if strings.TrimSpace(s.CompositionID) == "" {
		s.CompositionID = "CaptionedVideo"
	}
	if strings.TrimSpace(s.Codec) == "" {
		s.Codec = "h264"
	}
	if s.RenderDir == "" {
		s.RenderDir = filepath.Join(s.PublicDir, "renders")
	}
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = 1
	}
	if s.OverlapPolicy == "" {
		s.OverlapPolicy = captions.PolicyReject
	}
	return s
}

// Collaborators are the external stages an Orchestrator drives.
type Collaborators struct {
	Probe     render.Probe
	Bundler   render.Bundler
	Resolver  render.CompositionResolver
	Renderer  render.Renderer
	Tracker   ProgressTracker
	Notifier  notifications.Service
	Publisher publish.Publisher
}

// RenderRequest is a caller's render input.
type RenderRequest struct {
	// JobID keys progress; one is generated when empty.
	JobID string `json:"jobId,omitempty"`
	// VideoPath is relative to the public directory; a leading slash is ignored.
	VideoPath string            `json:"videoPath"`
	Captions  captions.Timeline `json:"captions"`
	Style     string            `json:"style"`
}

// RenderResult is the outcome of a successful render.
type RenderResult struct {
	Success bool `json:"success"`
	// OutputPath is the public URL path such as /renders/output-<ts>.mp4.
	OutputPath   string `json:"outputPath"`
	JobID        string `json:"jobId"`
	PublishedURL string `json:"publishedUrl,omitempty"`
	// File is the absolute location of the rendered video.
	File string `json:"-"`
}

// Orchestrator runs render jobs.
type Orchestrator struct {
	settings Settings
	collab   Collaborators
	logger   *slog.Logger
	sem      *semaphore.Weighted
	now      func() time.Time
	newID    func() string
}

// NewOrchestrator builds an orchestrator. Probe, Bundler, Resolver, Renderer,
// and Tracker are required.
func NewOrchestrator(settings Settings, collab Collaborators, logger *slog.Logger) (*Orchestrator, error) {
	if collab.Probe == nil || collab.Bundler == nil || collab.Resolver == nil || collab.Renderer == nil || collab.Tracker == nil {
		return nil, errors.New("workflow: orchestrator requires probe, bundler, resolver, renderer, and tracker")
	}
	if collab.Notifier == nil {
		collab.Notifier = notifications.NewNoop()
	}
	settings = settings.withDefaults()
	return &Orchestrator{
		settings: settings,
		collab:   collab,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		sem:      semaphore.NewWeighted(int64(settings.MaxConcurrent)),
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// Settings returns the effective settings.
func (o *Orchestrator) Settings() Settings {
	return o.settings
}

// FrameCount converts a duration into whole frames, rounding up.
func FrameCount(durationSeconds float64, fps int) int {
	return int(math.Ceil(durationSeconds * float64(fps)))
}

// RemapProgress maps a renderer fraction onto [start, 100].
func RemapProgress(fraction, start float64) float64 {
	switch {
	case math.IsNaN(fraction), fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	return start + fraction*(100-start)
}

// job carries per-render state across stages.
type job struct {
	id       string
	machine  *machine
	logger   *slog.Logger
	source   string
	bundle   string
	output   string
	meta     render.Metadata
	duration float64
	frames   int
}

// Render validates req and runs it to a terminal outcome. Input errors are
// returned before the tracker is touched.
func (o *Orchestrator) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	if strings.TrimSpace(req.VideoPath) == "" || req.Captions == nil {
		return RenderResult{}, newError(KindMissingParameters, "Missing required parameters", nil)
	}
	style, err := subtitles.ParseStyle(req.Style)
	if err != nil {
		return RenderResult{}, newError(KindInvalidStyle, "Unsupported caption style", err)
	}
	timeline, err := req.Captions.Validate(o.settings.OverlapPolicy)
	if err != nil {
		return RenderResult{}, newError(KindInvalidCaptions, "Invalid captions", err)
	}

	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		jobID = o.newID()
	}
	ctx = services.WithJobID(ctx, jobID)

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return RenderResult{}, newError(KindCanceled, "job canceled while waiting for a render slot", err)
	}
	defer o.sem.Release(1)

	j := &job{id: jobID, machine: newMachine(), logger: logging.WithContext(ctx, o.logger)}
	defer o.cleanup(j)

	j.logger.Info("render started",
		logging.String(logging.FieldEventType, "render_started"),
		logging.String("video", req.VideoPath),
		logging.String("style", style.String()),
		logging.Int("segments", len(timeline)),
	)
	o.notify(ctx, notifications.EventRenderStarted, notifications.Payload{"jobId": jobID, "video": req.VideoPath})

	result, wfErr := o.run(ctx, j, req.VideoPath, timeline, style)
	if wfErr != nil {
		o.fail(ctx, j, wfErr)
		return RenderResult{}, wfErr
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, j *job, videoPath string, timeline captions.Timeline, style subtitles.Style) (RenderResult, *Error) {
	if err := o.enter(ctx, j, StateProbing); err != nil {
		return RenderResult{}, err
	}
	o.collab.Tracker.Reset(ctx, j.id)
	if err := o.probe(ctx, j, videoPath); err != nil {
		return RenderResult{}, err
	}
	o.collab.Tracker.Set(ctx, j.id, o.settings.ProbeCheckpoint)

	if err := o.enter(ctx, j, StateBundling); err != nil {
		return RenderResult{}, err
	}
	o.collab.Tracker.Set(ctx, j.id, o.settings.BundleCheckpoint)
	if err := o.bundle(ctx, j); err != nil {
		return RenderResult{}, err
	}

	if err := o.enter(ctx, j, StateSelectingComposition); err != nil {
		return RenderResult{}, err
	}
	props := render.InputProps{VideoSrc: j.source, Captions: timeline, Style: style}
	comp, err := o.selectComposition(ctx, j, props)
	if err != nil {
		return RenderResult{}, err
	}
	o.collab.Tracker.Set(ctx, j.id, o.settings.CompositionCheckpoint)

	if err := o.enter(ctx, j, StateRendering); err != nil {
		return RenderResult{}, err
	}
	if err := o.render(ctx, j, comp, props); err != nil {
		return RenderResult{}, err
	}

	if err := o.enter(ctx, j, StateComplete); err != nil {
		return RenderResult{}, err
	}
	return o.complete(ctx, j), nil
}

func (o *Orchestrator) enter(ctx context.Context, j *job, to State) *Error {
	if err := j.machine.advance(to); err != nil {
		return newError(KindRenderFailed, "internal state error", err)
	}
	j.logger = logging.WithContext(services.WithStage(services.WithJobID(ctx, j.id), string(to)), o.logger)
	if to != StateComplete {
		j.logger.Debug("render stage entered")
	}
	return nil
}

func (o *Orchestrator) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.settings.StageTimeout > 0 {
		return context.WithTimeout(ctx, o.settings.StageTimeout)
	}
	return context.WithCancel(ctx)
}

func (o *Orchestrator) probe(ctx context.Context, j *job, videoPath string) *Error {
	source, err := ResolvePublicPath(o.settings.PublicDir, videoPath)
	if err != nil {
		return newError(KindVideoNotFound, "Video file not found", err)
	}
	info, err := os.Stat(source)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", source)
		}
		return newError(KindVideoNotFound, "Video file not found", err)
	}
	j.source = source

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()
	meta, err := o.collab.Probe.Probe(stageCtx, source)
	if err != nil && ctx.Err() != nil {
		return stageError(ctx, KindRenderFailed, "probe canceled", err)
	}
	j.meta = meta
	j.duration = meta.DurationSeconds
	if err != nil || math.IsNaN(j.duration) || math.IsInf(j.duration, 0) || j.duration <= 0 {
		attrs := []logging.Attr{
			logging.Float64("fallback_seconds", o.settings.FallbackDuration),
			logging.String(logging.FieldImpact, "output length may not match the source"),
			logging.String(logging.FieldErrorHint, "check that ffprobe can read the video"),
		}
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		}
		logging.WarnWithContext(j.logger, "video duration unavailable", "probe_fallback", attrs...)
		j.duration = o.settings.FallbackDuration
		// A failed probe tells us nothing about audio; assume the common case.
		if err != nil {
			j.meta.HasAudio = true
		}
	}
	j.frames = FrameCount(j.duration, o.settings.FPS)
	j.logger.Info("video probed",
		logging.Float64("duration_seconds", j.duration),
		logging.Int("frames", j.frames),
		logging.Bool("has_audio", j.meta.HasAudio),
	)
	return nil
}

func (o *Orchestrator) bundle(ctx context.Context, j *job) *Error {
	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()
	bundle, err := o.collab.Bundler.Bundle(stageCtx, render.BundleRequest{JobID: j.id})
	if err != nil {
		return stageError(ctx, KindBundleFailed, "Bundling failed", err)
	}
	j.bundle = bundle.Location
	return nil
}

func (o *Orchestrator) selectComposition(ctx context.Context, j *job, props render.InputProps) (render.Composition, *Error) {
	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()
	comp, err := o.collab.Resolver.SelectComposition(stageCtx, j.bundle, o.settings.CompositionID, props)
	if err != nil {
		return render.Composition{}, stageError(ctx, KindCompositionNotFound, fmt.Sprintf("Composition %s not found", o.settings.CompositionID), err)
	}
	comp.FPS = o.settings.FPS
	comp.DurationInFrames = j.frames
	return comp, nil
}

func (o *Orchestrator) render(ctx context.Context, j *job, comp render.Composition, props render.InputProps) *Error {
	if err := os.MkdirAll(o.settings.RenderDir, 0o755); err != nil {
		return newError(KindRenderFailed, "Render failed", fmt.Errorf("create render dir: %w", err))
	}
	j.output = filepath.Join(o.settings.RenderDir, fmt.Sprintf("output-%d.mp4", o.now().UnixMilli()))

	sampler := logging.NewProgressSampler(10)
	start := o.settings.CompositionCheckpoint
	onProgress := func(fraction float64) {
		value := RemapProgress(fraction, start)
		o.collab.Tracker.Set(ctx, j.id, value)
		if sampler.ShouldLog(value) {
			j.logger.Info("render progress", logging.Float64("progress", math.Round(value*10)/10))
		}
	}

	stageCtx, cancel := o.stageContext(ctx)
	defer cancel()
	err := o.collab.Renderer.Render(stageCtx, render.RenderRequest{
		Composition:    comp,
		ServeURL:       j.bundle,
		Codec:          o.settings.Codec,
		OutputLocation: j.output,
		InputProps:     props,
		OnProgress:     onProgress,
		HasAudio:       j.meta.HasAudio,
	})
	if err != nil {
		return stageError(ctx, KindRenderFailed, "Render failed", err)
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, j *job) RenderResult {
	o.collab.Tracker.Complete(ctx, j.id)
	result := RenderResult{
		Success:    true,
		OutputPath: o.publicURL(j.output),
		JobID:      j.id,
		File:       j.output,
	}
	if o.collab.Publisher != nil {
		url, err := o.collab.Publisher.Publish(ctx, j.output)
		if err != nil {
			logging.WarnWithContext(j.logger, "render publish failed", "publish_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "render is only available locally"),
				logging.String(logging.FieldErrorHint, "check the publish.s3_* settings and AWS credentials"),
			)
		} else {
			result.PublishedURL = url
		}
	}
	j.logger.Info("render complete",
		logging.String(logging.FieldEventType, "render_completed"),
		logging.String("output", result.OutputPath),
	)
	o.notify(ctx, notifications.EventRenderCompleted, notifications.Payload{"jobId": j.id, "output": result.OutputPath, "url": result.PublishedURL})
	return result
}

func (o *Orchestrator) fail(ctx context.Context, j *job, wfErr *Error) {
	if !j.machine.state.Terminal() {
		_ = j.machine.advance(StateFailed)
	}
	o.collab.Tracker.Fail(ctx, j.id)
	if j.output != "" {
		if err := os.Remove(j.output); err != nil && !errors.Is(err, os.ErrNotExist) {
			j.logger.Debug("partial output cleanup failed", logging.Error(err))
		}
	}
	logging.ErrorWithContext(j.logger, "render failed", "render_failed",
		logging.String("kind", string(wfErr.Kind)),
		logging.Error(wfErr),
	)
	o.notify(ctx, notifications.EventRenderFailed, notifications.Payload{"jobId": j.id, "kind": string(wfErr.Kind), "error": wfErr.Details()})
}

func (o *Orchestrator) cleanup(j *job) {
	if j.bundle == "" || o.settings.KeepBundles {
		return
	}
	if err := os.RemoveAll(j.bundle); err != nil {
		j.logger.Debug("bundle cleanup failed", logging.String("location", j.bundle), logging.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := o.collab.Notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job event was not delivered"),
			logging.String(logging.FieldErrorHint, "check the notifications settings"),
		)
	}
}

// publicURL expresses a file under the public directory as a URL path.
func (o *Orchestrator) publicURL(file string) string {
	root, rootErr := filepath.Abs(o.settings.PublicDir)
	abs, fileErr := filepath.Abs(file)
	if rootErr != nil || fileErr != nil {
		return "/renders/" + filepath.Base(file)
	}
	if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return "/" + filepath.ToSlash(rel)
	}
	return "/renders/" + filepath.Base(file)
}

// ResolvePublicPath maps a public URL path onto the public directory,
// rejecting paths that escape it.
func ResolvePublicPath(publicDir, urlPath string) (string, error) {
	cleaned := strings.TrimLeft(filepath.FromSlash(strings.TrimSpace(urlPath)), `/\`)
	if cleaned == "" {
		return "", errors.New("empty video path")
	}
	root, err := filepath.Abs(publicDir)
	if err != nil {
		return "", fmt.Errorf("resolve public dir: %w", err)
	}
	full := filepath.Join(root, cleaned)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("video path %q escapes the public directory", urlPath)
	}
	return full, nil
}
