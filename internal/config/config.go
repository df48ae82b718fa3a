package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	PublicDir string `toml:"public_dir"`
	UploadDir string `toml:"upload_dir"`
	RenderDir string `toml:"render_dir"`
	StateDir  string `toml:"state_dir"`
	LogDir    string `toml:"log_dir"`
	EnvFile   string `toml:"env_file"`
	APIBind   string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token on /api requests.
	APIToken string `toml:"api_token"`
}

// Transcription selects and configures the speech recognition backend.
type Transcription struct {
	// Backend is "google" (Cloud Speech-to-Text) or "whisperx".
	Backend             string `toml:"backend"`
	Language            string `toml:"language"`
	ProjectID           string `toml:"project_id"`
	Bucket              string `toml:"bucket"`
	CredentialsFile     string `toml:"credentials_file"`
	ObjectPrefix        string `toml:"object_prefix"`
	PollIntervalSeconds int    `toml:"poll_interval_seconds"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	WhisperXModel       string `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
}

// Render contains the render orchestrator and renderer settings.
type Render struct {
	FPS                     int     `toml:"fps"`
	FallbackDurationSeconds float64 `toml:"fallback_duration_seconds"`
	Codec                   string  `toml:"codec"`
	CompositionID           string  `toml:"composition_id"`
	Width                   int     `toml:"width"`
	Height                  int     `toml:"height"`
	// Checkpoints are the externally reported percentages for stages that
	// have no fine-grained progress signal.
	ProbeCheckpoint       float64 `toml:"probe_checkpoint"`
	BundleCheckpoint      float64 `toml:"bundle_checkpoint"`
	CompositionCheckpoint float64 `toml:"composition_checkpoint"`
	MaxConcurrent         int     `toml:"max_concurrent"`
	StageTimeoutSeconds   int     `toml:"stage_timeout_seconds"`
	KeepBundles           bool    `toml:"keep_bundles"`
}

// Captions controls caption timeline validation.
type Captions struct {
	// OverlapPolicy is "reject" or "merge".
	OverlapPolicy string `toml:"overlap_policy"`
}

// Progress configures the progress registry backend.
type Progress struct {
	// Backend is "file", "sqlite", "redis", or "memory".
	Backend          string `toml:"backend"`
	RetentionSeconds int    `toml:"retention_seconds"`
	FileName         string `toml:"file_name"`
	SQLitePath       string `toml:"sqlite_path"`
	RedisAddr        string `toml:"redis_addr"`
	RedisPassword    string `toml:"redis_password"`
	RedisDB          int    `toml:"redis_db"`
	RedisKeyPrefix   string `toml:"redis_key_prefix"`
}

// Upload contains upload limits for the HTTP API.
type Upload struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// Publish contains optional S3 publishing of rendered output.
type Publish struct {
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Prefix    string `toml:"s3_prefix"`
	S3Profile   string `toml:"s3_profile"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

// Notifications contains configuration for job lifecycle events.
type Notifications struct {
	NtfyTopic      string   `toml:"ntfy_topic"`
	RequestTimeout int      `toml:"request_timeout"`
	KafkaBrokers   []string `toml:"kafka_brokers"`
	KafkaTopic     string   `toml:"kafka_topic"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for captioner.
//
// Configuration sections by subsystem:
//   - Paths: public/upload/render/state directories and API bind address
//   - Transcription: Google Cloud Speech or WhisperX backend settings
//   - Render: orchestrator checkpoints, fps, codec, concurrency
//   - Captions: timeline validation policy
//   - Progress: progress registry backend and retention
//   - Upload: HTTP upload limits
//   - Publish: optional S3 upload of rendered videos
//   - Notifications: ntfy and Kafka job events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Transcription Transcription `toml:"transcription"`
	Render        Render        `toml:"render"`
	Captions      Captions      `toml:"captions"`
	Progress      Progress      `toml:"progress"`
	Upload        Upload        `toml:"upload"`
	Publish       Publish       `toml:"publish"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/captioner/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadEnvFile(cfg.Paths.EnvFile); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadEnvFile populates unset environment variables from a dotenv file.
// Existing variables win; a missing file is not an error.
func loadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("paths.env_file: %w", err)
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(expanded); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/captioner/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captioner.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.PublicDir, c.Paths.UploadDir, c.Paths.RenderDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// PublicURLPath returns the URL path dir is served under, relative to the
// public directory (for example "/uploads"). dir must lie strictly inside it.
func (c *Config) PublicURLPath(dir string) (string, error) {
	root, err := filepath.Abs(c.Paths.PublicDir)
	if err != nil {
		return "", fmt.Errorf("resolve public dir: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", dir, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q is not inside public_dir %q", dir, c.Paths.PublicDir)
	}
	return "/" + filepath.ToSlash(rel), nil
}

// FFmpegBinary returns the ffmpeg executable name used for extraction and rendering.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media probing.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// ProgressFilePath returns the legacy single-slot progress document path.
func (c *Config) ProgressFilePath() string {
	return filepath.Join(c.Paths.StateDir, c.Progress.FileName)
}

// ProgressRetention is how long a finished job keeps reporting its final value.
func (c *Config) ProgressRetention() time.Duration {
	return time.Duration(c.Progress.RetentionSeconds) * time.Second
}

// LockPath returns the daemon single-instance lock file path.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "captionerd.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
