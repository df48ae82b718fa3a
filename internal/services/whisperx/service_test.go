package whisperx

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestBuildArgsCPU(t *testing.T) {
	s := NewService(Config{})
	args := s.buildArgs("/tmp/a.wav", "/tmp/out", "en-US")
	joined := strings.Join(args, " ")
	for _, fragment := range []string{
		"--index-url " + pypiIndexURL,
		"whisperx /tmp/a.wav",
		"--model large-v3",
		"--output_format json",
		"--language en",
		"--device cpu --compute_type float32",
	} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in %q", fragment, joined)
		}
	}
}

func TestBuildArgsCUDAAndUnknownLanguage(t *testing.T) {
	s := NewService(Config{Model: "large-v3-turbo", CUDAEnabled: true})
	args := s.buildArgs("a.wav", "out", "???")
	if !slices.Contains(args, cudaIndexURL) || !slices.Contains(args, cudaDevice) {
		t.Fatalf("expected CUDA args, got %v", args)
	}
	if slices.Contains(args, "--language") {
		t.Fatalf("unparseable language must be omitted, got %v", args)
	}
	if s.Model() != "large-v3-turbo" || !s.CUDAEnabled() {
		t.Fatal("unexpected accessors")
	}
}

func TestTranscribeFileLoadsSegments(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "clip.wav")
	payload := `{"segments":[{"text":" Hello there.","start":0.4,"end":1.6,"words":[{"word":"Hello","start":0.4,"end":0.9},{"word":"there.","start":1.0,"end":1.6},{"word":"%"}]}]}`

	s := NewService(Config{})
	s.WithCommandRunner(func(_ context.Context, name string, args ...string) ([]byte, error) {
		if name != UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		return nil, os.WriteFile(filepath.Join(dir, "clip.json"), []byte(payload), 0o644)
	})

	result, err := s.TranscribeFile(context.Background(), source, "", "en")
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if result.JSONPath != filepath.Join(dir, "clip.json") {
		t.Fatalf("unexpected json path %q", result.JSONPath)
	}
	if len(result.Segments) != 1 || len(result.Segments[0].Words) != 3 {
		t.Fatalf("unexpected segments %+v", result.Segments)
	}
	if result.Segments[0].Words[2].Start != nil {
		t.Fatal("expected unaligned word to have no start")
	}
}

func TestTranscribeFileReportsCommandFailure(t *testing.T) {
	s := NewService(Config{})
	s.WithCommandRunner(func(context.Context, string, ...string) ([]byte, error) {
		return []byte("CUDA out of memory"), errors.New("exit status 1")
	})
	_, err := s.TranscribeFile(context.Background(), filepath.Join(t.TempDir(), "a.wav"), "", "en")
	if err == nil || !strings.Contains(err.Error(), "CUDA out of memory") {
		t.Fatalf("expected command output in error, got %v", err)
	}
}
