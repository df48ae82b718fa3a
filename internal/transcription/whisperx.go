package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"captioner/internal/captions"
	"captioner/internal/deps"
	"captioner/internal/logging"
	"captioner/internal/media/audio"
	"captioner/internal/services/whisperx"
)

// WhisperXConfig configures the local WhisperX backend.
type WhisperXConfig struct {
	Model         string
	CUDAEnabled   bool
	Language      string
	OverlapPolicy captions.OverlapPolicy
}

// WhisperX transcribes audio locally through uvx.
type WhisperX struct {
	cfg     WhisperXConfig
	service *whisperx.Service
	logger  *slog.Logger
	lookup  func() error
}

// NewWhisperX builds the WhisperX backend.
func NewWhisperX(cfg WhisperXConfig, logger *slog.Logger) *WhisperX {
	if cfg.OverlapPolicy == "" {
		cfg.OverlapPolicy = captions.PolicyReject
	}
	return &WhisperX{
		cfg:     cfg,
		service: whisperx.NewService(whisperx.Config{Model: cfg.Model, CUDAEnabled: cfg.CUDAEnabled}),
		logger:  logging.NewComponentLogger(logger, "transcription.whisperx"),
		lookup: func() error {
			return deps.Require(stageName, UVXRequirement())
		},
	}
}

// UVXRequirement describes the launcher WhisperX runs under.
func UVXRequirement() deps.Requirement {
	return deps.Requirement{
		Name:        "uvx",
		Command:     whisperx.UVXCommand,
		Description: "Runs WhisperX in an isolated Python environment",
		InstallHint: "install uv from https://docs.astral.sh/uv/",
	}
}

// WithCommandRunner replaces process execution and skips the uvx lookup (for testing).
func (w *WhisperX) WithCommandRunner(runner whisperx.CommandRunner) {
	w.service.WithCommandRunner(runner)
	w.lookup = func() error { return nil }
}

// Name implements Transcriber.
func (w *WhisperX) Name() string { return "whisperx" }

// AudioFormat implements Transcriber.
func (w *WhisperX) AudioFormat() audio.Format { return audio.FormatWAV }

// Validate implements Transcriber.
func (w *WhisperX) Validate() error {
	return w.lookup()
}

// Transcribe runs WhisperX and maps its aligned segments to a timeline.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) (captions.Timeline, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	outputDir, err := os.MkdirTemp("", "captioner-whisperx-")
	if err != nil {
		return nil, failed("prepare", "create output dir", err)
	}
	defer os.RemoveAll(outputDir)

	logger := logging.WithContext(ctx, w.logger)
	logger.Info("whisperx transcription started", logging.String("model", w.service.Model()), logging.Bool("cuda", w.service.CUDAEnabled()))

	result, err := w.service.TranscribeFile(ctx, audioPath, outputDir, w.cfg.Language)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("transcribe: %w", ctxErr)
		}
		return nil, failed("whisperx", "run whisperx", err)
	}
	timeline, err := finalize(timelineFromWhisperX(result.Segments), w.cfg.OverlapPolicy)
	if err != nil {
		return nil, err
	}
	logger.Info("whisperx transcription complete", logging.Int("segments", len(timeline)))
	return timeline, nil
}

// timelineFromWhisperX drops words the aligner could not place.
func timelineFromWhisperX(segments []whisperx.Segment) captions.Timeline {
	timeline := make(captions.Timeline, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		out := captions.Segment{Text: text, StartTime: seg.Start, EndTime: seg.End}
		for _, word := range seg.Words {
			if word.Start == nil || word.End == nil || strings.TrimSpace(word.Word) == "" {
				continue
			}
			out.Words = append(out.Words, captions.Word{Word: strings.TrimSpace(word.Word), StartTime: *word.Start, EndTime: *word.End})
		}
		timeline = append(timeline, out)
	}
	return timeline
}
