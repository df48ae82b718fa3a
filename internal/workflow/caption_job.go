package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"captioner/internal/captions"
	"captioner/internal/deps"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/notifications"
	"captioner/internal/services"
	"captioner/internal/transcription"
)

// Extractor derives an audio track from a video.
type Extractor interface {
	Extract(ctx context.Context, videoPath, audioPath string) error
}

// CaptionJob turns an uploaded video into a caption timeline.
type CaptionJob struct {
	extractor   Extractor
	transcriber transcription.Transcriber
	notifier    notifications.Service
	logger      *slog.Logger
	precheck    func() error
}

// NewCaptionJob builds a caption job. ffmpegBinary is checked before any work starts.
func NewCaptionJob(extractor Extractor, transcriber transcription.Transcriber, notifier notifications.Service, ffmpegBinary string, logger *slog.Logger) *CaptionJob {
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	return &CaptionJob{
		extractor:   extractor,
		transcriber: transcriber,
		notifier:    notifier,
		logger:      logging.NewComponentLogger(logger, "captions"),
		precheck: func() error {
			return deps.Require("captions", deps.FFmpegRequirement(ffmpegBinary))
		},
	}
}

// WithPrecheck replaces the media tool check (for testing).
func (c *CaptionJob) WithPrecheck(fn func() error) {
	if fn != nil {
		c.precheck = fn
	}
}

// CaptionRequest identifies the video to caption.
type CaptionRequest struct {
	JobID     string
	VideoPath string
	// PublicPath is how the video is addressed by clients, used in events.
	PublicPath string
}

// Run checks preconditions, extracts audio, and transcribes it. The
// temporary audio file is removed on every exit path.
func (c *CaptionJob) Run(ctx context.Context, req CaptionRequest) (captions.Timeline, error) {
	ctx = services.WithJobID(ctx, req.JobID)
	logger := logging.WithContext(ctx, c.logger)
	label := req.PublicPath
	if label == "" {
		label = req.VideoPath
	}

	timeline, err := c.run(ctx, logger, req.VideoPath)
	if err != nil {
		var wfErr *Error
		if errors.As(err, &wfErr) {
			logging.ErrorWithContext(logger, "caption job failed", "captions_failed",
				logging.String("kind", string(wfErr.Kind)),
				logging.Error(err),
			)
		}
		c.publish(ctx, notifications.EventCaptionsFailed, notifications.Payload{"jobId": req.JobID, "video": label, "error": err.Error()})
		return nil, err
	}
	logger.Info("captions ready",
		logging.String(logging.FieldEventType, "captions_ready"),
		logging.Int("segments", len(timeline)),
		logging.Int("words", timeline.WordCount()),
	)
	c.publish(ctx, notifications.EventCaptionsReady, notifications.Payload{"jobId": req.JobID, "video": label, "segments": len(timeline)})
	return timeline, nil
}

// Preflight reports missing tools or configuration without touching any file,
// so callers can refuse work before accepting an upload.
func (c *CaptionJob) Preflight() error {
	if err := c.precheck(); err != nil {
		return newError(KindToolMissing, "FFmpeg is not installed", err)
	}
	if err := c.transcriber.Validate(); err != nil {
		return newError(KindNotConfigured, "Transcription is not configured", err)
	}
	return nil
}

func (c *CaptionJob) run(ctx context.Context, logger *slog.Logger, videoPath string) (captions.Timeline, error) {
	if strings.TrimSpace(videoPath) == "" {
		return nil, newError(KindMissingParameters, "No video file provided", nil)
	}
	if err := c.Preflight(); err != nil {
		return nil, err
	}

	audioPath := audio.PathFor(videoPath, c.transcriber.AudioFormat())
	defer func() {
		if err := os.Remove(audioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "temporary audio cleanup failed", "audio_cleanup",
				logging.String("path", audioPath),
				logging.Error(err),
				logging.String(logging.FieldImpact, "temporary audio remains on disk"),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
			)
		}
	}()

	if err := c.extractor.Extract(services.WithStage(ctx, "extract"), videoPath, audioPath); err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return nil, newError(KindToolMissing, "FFmpeg is not installed", err)
		}
		return nil, stageError(ctx, KindExtractionFailed, "Audio extraction failed", err)
	}

	timeline, err := c.transcriber.Transcribe(services.WithStage(ctx, "transcribe"), audioPath)
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			return nil, newError(KindNotConfigured, "Transcription is not configured", err)
		}
		return nil, stageError(ctx, KindTranscriptionFailed, "Transcription failed", err)
	}
	return timeline, nil
}

func (c *CaptionJob) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := c.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
