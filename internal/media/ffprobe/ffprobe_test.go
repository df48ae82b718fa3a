package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", AvgFrameRate: "30000/1001", Width: 1920, Height: 1080},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "123.45", Size: "1000"},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if d, ok := result.DurationSeconds(); !ok || d != 123.45 {
		t.Fatalf("unexpected duration: %v %v", d, ok)
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if rate := result.FrameRate(); math.Abs(rate-29.97) > 0.01 {
		t.Fatalf("unexpected frame rate: %v", rate)
	}
	if stream, ok := result.VideoStream(); !ok || stream.Width != 1920 {
		t.Fatalf("unexpected video stream: %+v %v", stream, ok)
	}
}

func TestDurationFallsBackToStreams(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "11.5"}, {CodecType: "audio", Duration: "12.0"}},
		Format:  Format{Duration: "N/A"},
	}
	if d, ok := result.DurationSeconds(); !ok || d != 12.0 {
		t.Fatalf("expected longest stream duration, got %v %v", d, ok)
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", RFrameRate: "bad"}},
		Format:  Format{Duration: "bad", Size: "-1"},
	}
	if d, ok := result.DurationSeconds(); ok || d != 0 {
		t.Fatalf("expected unusable duration, got %v %v", d, ok)
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.FrameRate() != 0 {
		t.Fatalf("expected frame rate 0, got %v", result.FrameRate())
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat <<'JSON'\n{\"streams\":[{\"codec_type\":\"video\",\"r_frame_rate\":\"30/1\"}],\"format\":{\"duration\":\"12.000000\"}}\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), stub, filepath.Join(dir, "clip.mp4"))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if d, ok := result.DurationSeconds(); !ok || d != 12 {
		t.Fatalf("unexpected duration %v %v", d, ok)
	}
	if result.FrameRate() != 30 {
		t.Fatalf("unexpected frame rate %v", result.FrameRate())
	}
}

func TestInspectReportsFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'clip.mp4: No such file' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := Inspect(context.Background(), stub, "clip.mp4"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Inspect(context.Background(), stub, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
