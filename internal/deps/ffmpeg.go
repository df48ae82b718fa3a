package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const ffmpegInstallHint = "install ffmpeg (e.g. \"brew install ffmpeg\" or \"apt-get install ffmpeg\") and make sure it is on PATH"

// FFmpegRequirement describes the ffmpeg binary used for extraction and rendering.
func FFmpegRequirement(binary string) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     defaultCommand(binary, "ffmpeg"),
		Description: "Extracts audio and burns captions into video",
		InstallHint: ffmpegInstallHint,
	}
}

// FFprobeRequirement describes the ffprobe binary used for media probing.
func FFprobeRequirement(binary string) Requirement {
	return Requirement{
		Name:        "FFprobe",
		Command:     defaultCommand(binary, "ffprobe"),
		Description: "Reads source video duration",
		InstallHint: ffmpegInstallHint,
		Optional:    true,
	}
}

// CheckFFmpeg resolves ffmpeg and, when present, records its version banner
// in Detail.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	status := checkBinary(FFmpegRequirement(binary))
	if !status.Available {
		return status
	}
	version, err := FFmpegVersion(ctx, status.Path)
	if err != nil {
		status.Available = false
		status.Detail = err.Error()
		return status
	}
	status.Detail = version
	return status
}

// FFmpegVersion runs "ffmpeg -version" and returns the first line.
func FFmpegVersion(ctx context.Context, binary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	output, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("run %s -version: %w", binary, err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(output)), "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s -version printed nothing", binary)
	}
	return line, nil
}

func defaultCommand(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
