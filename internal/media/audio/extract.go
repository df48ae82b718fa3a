package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"captioner/internal/deps"
	"captioner/internal/logging"
	"captioner/internal/services"
)

// ErrExtractionFailed marks a failed ffmpeg run or unreadable source.
var ErrExtractionFailed = errors.New("audio extraction failed")

// Format is the container/codec of the extracted track.
type Format string

const (
	// FormatFLAC is lossless and accepted by Cloud Speech-to-Text.
	FormatFLAC Format = "flac"
	// FormatWAV is 16-bit PCM for WhisperX.
	FormatWAV Format = "wav"
	// FormatMP3 matches files produced by older upload flows.
	FormatMP3 Format = "mp3"
)

// SampleRateHertz is the mono sample rate every format is resampled to.
const SampleRateHertz = 16000

const stderrTailLimit = 512

// CommandRunner executes a binary and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Extractor runs ffmpeg to derive audio from video.
type Extractor struct {
	binary string
	logger *slog.Logger
	runner CommandRunner
}

// NewExtractor builds an extractor that invokes the given ffmpeg binary.
func NewExtractor(binary string, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Extractor{
		binary: binary,
		logger: logging.NewComponentLogger(logger, "audio"),
		runner: runCommand,
	}
}

// WithCommandRunner replaces process execution (for testing).
func (e *Extractor) WithCommandRunner(runner CommandRunner) {
	if runner != nil {
		e.runner = runner
	}
}

// PathFor returns the audio path written next to an uploaded video.
func PathFor(videoPath string, format Format) string {
	return videoPath + "." + string(format)
}

// FormatForPath infers the output format from the audio file extension.
func FormatForPath(audioPath string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(audioPath), ".")) {
	case "wav":
		return FormatWAV
	case "mp3":
		return FormatMP3
	default:
		return FormatFLAC
	}
}

// Extract writes a mono 16 kHz audio track from videoPath to audioPath.
func (e *Extractor) Extract(ctx context.Context, videoPath, audioPath string) error {
	if err := deps.Require("audio", deps.FFmpegRequirement(e.binary)); err != nil {
		return err
	}
	info, err := os.Stat(videoPath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "open source", "source video is unreadable", fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}
	if info.IsDir() {
		return services.Wrap(services.ErrExternalTool, "audio", "open source", fmt.Sprintf("%s is a directory", videoPath), ErrExtractionFailed)
	}

	args := BuildArgs(videoPath, audioPath, FormatForPath(audioPath))
	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("extracting audio", logging.String("source", videoPath), logging.String("dest", audioPath), logging.String("args", strings.Join(args, " ")))

	output, err := e.runner(ctx, e.binary, args...)
	if err != nil {
		_ = os.Remove(audioPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("extract audio: %w", ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, "audio", "ffmpeg", tail(string(output)), fmt.Errorf("%w: %w", ErrExtractionFailed, err))
	}
	if info, statErr := os.Stat(audioPath); statErr != nil || info.Size() == 0 {
		_ = os.Remove(audioPath)
		return services.Wrap(services.ErrExternalTool, "audio", "ffmpeg", "ffmpeg produced no audio (does the video have a sound track?)", ErrExtractionFailed)
	}
	logger.Info("audio extracted", logging.String("dest", audioPath))
	return nil
}

// BuildArgs assembles the ffmpeg arguments for an extraction.
func BuildArgs(videoPath, audioPath string, format Format) []string {
	kwargs := ffmpeg.KwArgs{
		"vn": "",
		"sn": "",
		"dn": "",
		"ac": 1,
		"ar": SampleRateHertz,
	}
	switch format {
	case FormatWAV:
		kwargs["c:a"] = "pcm_s16le"
	case FormatMP3:
		kwargs["c:a"] = "libmp3lame"
		kwargs["q:a"] = 4
	default:
		kwargs["c:a"] = "flac"
	}
	return ffmpeg.Input(videoPath).
		Output(audioPath, kwargs).
		GlobalArgs("-hide_banner", "-loglevel", "error").
		OverWriteOutput().
		GetArgs()
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

func tail(output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return "ffmpeg exited with an error"
	}
	if len(output) > stderrTailLimit {
		output = "..." + output[len(output)-stderrTailLimit:]
	}
	return output
}
