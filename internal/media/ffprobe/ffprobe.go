package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Duration     string `json:"duration"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
	SampleRate   string `json:"sample_rate"`
	Channels     int    `json:"channels"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string `json:"filename"`
	NBStreams  int    `json:"nb_streams"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	FormatName string `json:"format_name"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// VideoStream returns the first video stream.
func (r Result) VideoStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "video") {
			return stream, true
		}
	}
	return Stream{}, false
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration, falling back to the longest
// stream duration. The second value is false when neither is usable.
func (r Result) DurationSeconds() (float64, bool) {
	if d := parseFloat(r.Format.Duration); usable(d) {
		return d, true
	}
	longest := 0.0
	for _, stream := range r.Streams {
		if d := parseFloat(stream.Duration); usable(d) && d > longest {
			longest = d
		}
	}
	return longest, longest > 0
}

// FrameRate returns the primary video stream frame rate, or 0 when unknown.
func (r Result) FrameRate() float64 {
	stream, ok := r.VideoStream()
	if !ok {
		return 0
	}
	for _, candidate := range []string{stream.AvgFrameRate, stream.RFrameRate} {
		if rate := parseRational(candidate); usable(rate) {
			return rate
		}
	}
	return 0
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if !usable(size) {
		return 0
	}
	return int64(size)
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" || cleaned == "N/A" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}

// parseRational handles ffprobe's "30000/1001" frame rate notation.
func parseRational(value string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(value), "/")
	if !found {
		return parseFloat(num)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 || math.IsNaN(n) || math.IsNaN(d) {
		return 0
	}
	return n / d
}
