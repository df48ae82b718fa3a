package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"captioner/internal/captions"
	"captioner/internal/config"
	"captioner/internal/media/audio"
	"captioner/internal/services"
)

// ErrTranscriptionFailed marks a recognizer failure or a malformed response.
var ErrTranscriptionFailed = errors.New("transcription failed")

const stageName = "transcription"

// Transcriber produces a caption timeline from an audio file.
type Transcriber interface {
	// Name identifies the backend in logs and setup reports.
	Name() string
	// AudioFormat is the format the audio must be extracted to.
	AudioFormat() audio.Format
	// Validate reports missing configuration without touching the network.
	Validate() error
	Transcribe(ctx context.Context, audioPath string) (captions.Timeline, error)
}

// New builds the backend selected by cfg.Transcription.Backend.
func New(cfg *config.Config, logger *slog.Logger) (Transcriber, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "configuration unavailable", nil)
	}
	policy, err := captions.ParseOverlapPolicy(cfg.Captions.OverlapPolicy)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", "captions.overlap_policy", err)
	}
	tc := cfg.Transcription
	switch strings.ToLower(strings.TrimSpace(tc.Backend)) {
	case "", "google":
		return NewGoogle(GoogleConfig{
			ProjectID:       tc.ProjectID,
			Bucket:          tc.Bucket,
			CredentialsFile: tc.CredentialsFile,
			ObjectPrefix:    tc.ObjectPrefix,
			Language:        tc.Language,
			PollInterval:    time.Duration(tc.PollIntervalSeconds) * time.Second,
			Timeout:         time.Duration(tc.TimeoutSeconds) * time.Second,
			OverlapPolicy:   policy,
		}, logger), nil
	case "whisperx":
		return NewWhisperX(WhisperXConfig{
			Model:         tc.WhisperXModel,
			CUDAEnabled:   tc.WhisperXCUDAEnabled,
			Language:      tc.Language,
			OverlapPolicy: policy,
		}, logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "init", fmt.Sprintf("unknown backend %q", tc.Backend), nil)
	}
}

// finalize normalizes recognizer output and enforces the timeline invariants.
func finalize(timeline captions.Timeline, policy captions.OverlapPolicy) (captions.Timeline, error) {
	if len(timeline) == 0 {
		return captions.Timeline{}, nil
	}
	validated, err := timeline.Normalize().Validate(policy)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "validate result", "recognizer returned an invalid timeline", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err))
	}
	return validated, nil
}

func failed(operation, message string, err error) error {
	if err == nil {
		err = ErrTranscriptionFailed
	} else {
		err = fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	return services.Wrap(services.ErrExternalTool, stageName, operation, message, err)
}
