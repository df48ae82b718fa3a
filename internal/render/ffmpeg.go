package render

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"captioner/internal/deps"
	"captioner/internal/logging"
	"captioner/internal/services"
)

const stderrTailLimit = 1024

// videoEncoders maps configured codecs to ffmpeg encoders.
var videoEncoders = map[string]string{
	"h264": "libx264",
	"h265": "libx265",
	"vp9":  "libvpx-vp9",
}

// FFmpeg implements Renderer by burning the composition's subtitle script
// into the source video.
type FFmpeg struct {
	binary string
	logger *slog.Logger
}

// NewFFmpeg returns a renderer that runs binary.
func NewFFmpeg(binary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary, logger: logging.NewComponentLogger(logger, "renderer")}
}

// BuildArgs assembles the ffmpeg arguments for a render request.
func BuildArgs(req RenderRequest) ([]string, error) {
	comp := req.Composition
	encoder, ok := videoEncoders[strings.ToLower(strings.TrimSpace(req.Codec))]
	if !ok {
		return nil, fmt.Errorf("unsupported codec %q", req.Codec)
	}
	if comp.SubtitlePath == "" {
		return nil, fmt.Errorf("composition %q has no subtitle script", comp.ID)
	}
	source := req.InputProps.VideoSrc
	if source == "" {
		source = comp.Props.VideoSrc
	}
	input := ffmpeg.Input(source)

	// Letterbox into the composition canvas so the script's PlayRes matches the frame.
	size := fmt.Sprintf("%d:%d", comp.Width, comp.Height)
	video := ffmpeg.Filter([]*ffmpeg.Stream{input.Video()}, "scale", ffmpeg.Args{size}, ffmpeg.KwArgs{"force_original_aspect_ratio": "decrease"}).
		Filter("pad", ffmpeg.Args{size, "(ow-iw)/2", "(oh-ih)/2"}).
		Filter("setsar", ffmpeg.Args{"1"}).
		Filter("ass", ffmpeg.Args{filepath.ToSlash(comp.SubtitlePath)})

	streams := []*ffmpeg.Stream{video}
	kwargs := ffmpeg.KwArgs{
		"c:v":      encoder,
		"pix_fmt":  "yuv420p",
		"r":        comp.FPS,
		"movflags": "+faststart",
	}
	if seconds := comp.DurationSeconds(); seconds > 0 {
		kwargs["t"] = strconv.FormatFloat(seconds, 'f', 3, 64)
	}
	if req.HasAudio {
		streams = append(streams, input.Audio())
		kwargs["c:a"] = "aac"
		kwargs["b:a"] = "192k"
	}
	return ffmpeg.Output(streams, req.OutputLocation, kwargs).
		GlobalArgs("-progress", "pipe:1", "-nostats", "-hide_banner", "-loglevel", "error").
		OverWriteOutput().
		GetArgs(), nil
}

// Render implements Renderer. Cancelling ctx kills ffmpeg.
func (f *FFmpeg) Render(ctx context.Context, req RenderRequest) error {
	if err := deps.Require("render", deps.FFmpegRequirement(f.binary)); err != nil {
		return err
	}
	args, err := BuildArgs(req)
	if err != nil {
		return services.Wrap(services.ErrValidation, "render", "build args", err.Error(), ErrRenderFailed)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputLocation), 0o755); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "prepare output", req.OutputLocation, err)
	}

	logger := logging.WithContext(ctx, f.logger)
	logger.Debug("ffmpeg render starting", logging.String("args", strings.Join(args, " ")))

	cmd := exec.CommandContext(ctx, f.binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "ffmpeg pipe", "", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "render", "start ffmpeg", "", fmt.Errorf("%w: %w", ErrRenderFailed, err))
	}

	// Stdout must be drained before Wait closes the pipe.
	ParseProgress(stdout, req.Composition.DurationSeconds(), req.OnProgress)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("render: %w", ctxErr)
		}
		return services.Wrap(services.ErrExternalTool, "render", "ffmpeg", tail(stderr.String()), fmt.Errorf("%w: %w", ErrRenderFailed, err))
	}
	if info, err := os.Stat(req.OutputLocation); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "render", "ffmpeg", "ffmpeg produced no output", ErrRenderFailed)
	}
	logger.Info("ffmpeg render finished", logging.String("output", req.OutputLocation))
	return nil
}

// ParseProgress reads ffmpeg `-progress` key=value blocks and reports the
// fraction of durationSeconds encoded so far. A final `progress=end` reports 1.
func ParseProgress(r io.Reader, durationSeconds float64, onProgress func(float64)) {
	if onProgress == nil {
		onProgress = func(float64) {}
	}
	scanner := bufio.NewScanner(r)
	var outTimeUS int64
	last := -1.0
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			// Both keys carry microseconds; out_time_ms is the historical name.
			if v, err := strconv.ParseInt(value, 10, 64); err == nil && v >= 0 {
				outTimeUS = v
			}
		case "progress":
			fraction := 1.0
			if value != "end" {
				fraction = progressFraction(outTimeUS, durationSeconds)
			}
			if fraction > last {
				last = fraction
				onProgress(fraction)
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

func progressFraction(outTimeUS int64, durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	fraction := float64(outTimeUS) / (durationSeconds * 1e6)
	switch {
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
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
