package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/text/language"
)

// CommandRunner executes a command and returns its combined output.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Service runs WhisperX through uvx and reads back its JSON transcript.
type Service struct {
	cfg    Config
	runner CommandRunner
}

func NewService(cfg Config) *Service {
	return &Service{cfg: cfg, runner: execRunner}
}

// WithCommandRunner replaces process execution (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	if runner == nil {
		runner = execRunner
	}
	s.runner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	// Torch 2.6 defaults torch.load to weights_only, which pyannote model loading rejects.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	return cmd.CombinedOutput()
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if output, err := s.runner(ctx, name, args...); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// TranscribeResult contains the result of a transcription.
type TranscribeResult struct {
	// JSONPath is the transcript WhisperX wrote.
	JSONPath string
	Segments []Segment
}

// TranscribeFile transcribes a WAV file. outputDir receives the WhisperX
// output; it defaults to the directory of source.
func (s *Service) TranscribeFile(ctx context.Context, source, outputDir, lang string) (TranscribeResult, error) {
	var result TranscribeResult

	if source == "" {
		return result, fmt.Errorf("transcribe: source path required")
	}
	if outputDir == "" {
		outputDir = filepath.Dir(source)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return result, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	if err := s.run(ctx, UVXCommand, s.buildArgs(source, outputDir, lang)...); err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	result.JSONPath = filepath.Join(outputDir, baseName+".json")
	segments, err := LoadSegments(result.JSONPath)
	if err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}
	result.Segments = segments
	return result, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, lang string) []string {
	args := make([]string, 0, 32)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", cudaIndexURL,
			"--extra-index-url", pypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", batchSize,
		"--output_dir", outputDir,
		"--output_format", outputFormat,
		"--segment_resolution", segmentResolution,
		"--chunk_size", chunkSize,
		"--beam_size", beamSize,
		"--vad_method", vadMethod,
	)

	if code := isoLanguage(lang); code != "" {
		args = append(args, "--language", code)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", cudaDevice)
	} else {
		args = append(args, "--device", cpuDevice, "--compute_type", cpuComputeType)
	}

	return args
}

// isoLanguage reduces a BCP-47 tag such as "en-US" to the two-letter code
// WhisperX expects.
func isoLanguage(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	return base.String()
}

// Word represents a single word with timing from WhisperX output. Words the
// aligner could not place have no start or end.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}
