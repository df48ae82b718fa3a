package preflight

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"strings"

	"golang.org/x/oauth2/google"

	"captioner/internal/config"
	"captioner/internal/deps"
)

// cloudPlatformScope is the scope requested when validating service account keys.
const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// SetupStatus is the per-item readiness of the caption pipeline.
type SetupStatus struct {
	FFmpeg               bool `json:"ffmpeg"`
	GoogleCloudProjectID bool `json:"googleCloudProjectId"`
	GoogleCloudBucket    bool `json:"googleCloudBucket"`
	KeyJSON              bool `json:"keyJson"`
	// UVX is only reported for the whisperx backend.
	UVX *bool `json:"uvx,omitempty"`
}

func (s SetupStatus) ready() bool {
	ok := s.FFmpeg && s.GoogleCloudProjectID && s.GoogleCloudBucket && s.KeyJSON
	if s.UVX != nil {
		ok = ok && *s.UVX
	}
	return ok
}

// SetupReport is the check-setup document served to clients.
type SetupReport struct {
	Ready        bool              `json:"ready"`
	Backend      string            `json:"backend"`
	Status       SetupStatus       `json:"status"`
	Messages     []string          `json:"messages"`
	Instructions map[string]string `json:"instructions"`
}

var setupInstructions = map[string]string{
	"ffmpeg":      "Install FFmpeg: apt install ffmpeg (or download from ffmpeg.org)",
	"googleCloud": "Set transcription.project_id and transcription.bucket, or GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_BUCKET_NAME in .env",
	"keyJson":     "Place your Google Cloud service account key.json at transcription.credentials_file",
	"uvx":         "Install uv from https://docs.astral.sh/uv/ to run WhisperX",
}

// CheckSetup reports whether captions can be generated with the current
// configuration. It never contacts Google; key files are only parsed.
func CheckSetup(ctx context.Context, cfg *config.Config) SetupReport {
	report := SetupReport{Instructions: map[string]string{}, Messages: []string{}}
	if cfg == nil {
		report.Messages = append(report.Messages, "✗ Configuration is unavailable")
		maps.Copy(report.Instructions, setupInstructions)
		return report
	}
	report.Backend = cfg.Transcription.Backend

	ffmpeg := deps.CheckFFmpeg(ctx, cfg.FFmpegBinary())
	report.Status.FFmpeg = ffmpeg.Available
	if ffmpeg.Available {
		report.pass("FFmpeg is installed")
	} else {
		report.fail("ffmpeg", "FFmpeg is NOT installed - Install from https://ffmpeg.org")
	}

	if cfg.Transcription.Backend == "whisperx" {
		report.checkWhisperX(cfg)
	} else {
		report.checkGoogle(cfg)
	}

	report.Ready = report.Status.ready()
	return report
}

func (r *SetupReport) checkGoogle(cfg *config.Config) {
	tc := cfg.Transcription
	if tc.ProjectID != "" && tc.ProjectID != config.PlaceholderProjectID {
		r.Status.GoogleCloudProjectID = true
		r.pass(fmt.Sprintf("Google Cloud Project ID is set: %s", tc.ProjectID))
	} else {
		r.fail("googleCloud", "Google Cloud Project ID is NOT configured")
	}

	if tc.Bucket != "" {
		r.Status.GoogleCloudBucket = true
		r.pass(fmt.Sprintf("Google Cloud Bucket is set: %s", tc.Bucket))
	} else {
		r.fail("googleCloud", "Google Cloud Bucket Name is NOT configured")
	}

	switch err := ValidateCredentialsFile(tc.CredentialsFile); {
	case err == nil:
		r.Status.KeyJSON = true
		r.pass("key.json file exists")
	case errors.Is(err, os.ErrNotExist):
		r.fail("keyJson", "key.json file is MISSING")
	default:
		r.fail("keyJson", fmt.Sprintf("key.json is not a usable service account key (%v)", err))
	}
}

func (r *SetupReport) checkWhisperX(cfg *config.Config) {
	r.Status.GoogleCloudProjectID = true
	r.Status.GoogleCloudBucket = true
	r.Status.KeyJSON = true
	r.pass("Google Cloud credentials are not required for the whisperx backend")

	statuses := CheckSystemDeps(cfg)
	available := false
	for _, status := range statuses {
		if status.Name == "uvx" {
			available = status.Available
		}
	}
	r.Status.UVX = &available
	if available {
		r.pass("uvx is installed")
	} else {
		r.fail("uvx", "uvx is NOT installed - WhisperX cannot run")
	}
}

func (r *SetupReport) pass(msg string) {
	r.Messages = append(r.Messages, "✓ "+msg)
}

// fail records a failed item and the instruction that resolves it.
func (r *SetupReport) fail(item, msg string) {
	r.Messages = append(r.Messages, "✗ "+msg)
	r.Instructions[item] = setupInstructions[item]
}

// ValidateCredentialsFile checks that path holds a service account key.
// Missing files wrap os.ErrNotExist.
func ValidateCredentialsFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("credentials file not configured: %w", os.ErrNotExist)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := google.JWTConfigFromJSON(data, cloudPlatformScope); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
