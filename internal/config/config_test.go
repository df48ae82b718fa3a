package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"captioner/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "demo-project")
	t.Setenv("GOOGLE_CLOUD_BUCKET_NAME", "demo-bucket")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "captioner", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if !filepath.IsAbs(cfg.Paths.PublicDir) {
		t.Fatalf("expected absolute public dir, got %q", cfg.Paths.PublicDir)
	}
	if cfg.Paths.UploadDir != filepath.Join(cfg.Paths.PublicDir, "uploads") {
		t.Fatalf("unexpected upload dir: %q", cfg.Paths.UploadDir)
	}
	if cfg.Paths.RenderDir != filepath.Join(cfg.Paths.PublicDir, "renders") {
		t.Fatalf("unexpected render dir: %q", cfg.Paths.RenderDir)
	}
	if cfg.Progress.SQLitePath != filepath.Join(wantState, "progress.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Progress.SQLitePath)
	}
	if cfg.Transcription.ProjectID != "demo-project" {
		t.Fatalf("expected project id from env, got %q", cfg.Transcription.ProjectID)
	}
	if cfg.Transcription.Bucket != "demo-bucket" {
		t.Fatalf("expected bucket from env, got %q", cfg.Transcription.Bucket)
	}
	if cfg.Render.FPS != 30 || cfg.Render.CompositionID != "CaptionedVideo" {
		t.Fatalf("unexpected render defaults: %+v", cfg.Render)
	}
	if cfg.Render.ProbeCheckpoint != 5 || cfg.Render.BundleCheckpoint != 10 || cfg.Render.CompositionCheckpoint != 20 {
		t.Fatalf("unexpected checkpoints: %+v", cfg.Render)
	}
	if cfg.Captions.OverlapPolicy != "reject" {
		t.Fatalf("unexpected overlap policy: %q", cfg.Captions.OverlapPolicy)
	}
	if cfg.Upload.MaxBytes != 100*1024*1024 {
		t.Fatalf("unexpected upload limit: %d", cfg.Upload.MaxBytes)
	}
}

func TestLoadCustomPathOverridesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	configPath := filepath.Join(t.TempDir(), "captioner.toml")
	content := `
[paths]
public_dir = "~/site"
state_dir = "~/state"
api_bind = "0.0.0.0:9000"

[transcription]
backend = "WhisperX"
language = "de-DE"

[render]
fps = 25
max_concurrent = 2

[captions]
overlap_policy = "merge"

[progress]
backend = "sqlite"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", configPath, resolved, exists)
	}
	if cfg.Paths.PublicDir != filepath.Join(tempHome, "site") {
		t.Fatalf("unexpected public dir: %q", cfg.Paths.PublicDir)
	}
	if cfg.Paths.RenderDir != filepath.Join(tempHome, "site", "renders") {
		t.Fatalf("unexpected render dir: %q", cfg.Paths.RenderDir)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.Backend != "whisperx" {
		t.Fatalf("expected lowercased backend, got %q", cfg.Transcription.Backend)
	}
	if cfg.Render.FPS != 25 || cfg.Render.MaxConcurrent != 2 {
		t.Fatalf("unexpected render overrides: %+v", cfg.Render)
	}
	if cfg.Captions.OverlapPolicy != "merge" {
		t.Fatalf("unexpected overlap policy: %q", cfg.Captions.OverlapPolicy)
	}
	if cfg.Progress.SQLitePath != filepath.Join(tempHome, "state", "progress.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Progress.SQLitePath)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	workDir := t.TempDir()
	t.Chdir(workDir)

	envBody := "GOOGLE_CLOUD_PROJECT_ID=from-dotenv\nGOOGLE_CLOUD_BUCKET_NAME=dotenv-bucket\n"
	if err := os.WriteFile(filepath.Join(workDir, ".env"), []byte(envBody), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("GOOGLE_CLOUD_BUCKET_NAME", "shell-bucket")
	t.Setenv("GOOGLE_CLOUD_PROJECT_ID", "")
	os.Unsetenv("GOOGLE_CLOUD_PROJECT_ID")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.ProjectID != "from-dotenv" {
		t.Fatalf("expected project id from .env, got %q", cfg.Transcription.ProjectID)
	}
	if cfg.Transcription.Bucket != "shell-bucket" {
		t.Fatalf("expected shell variable to win, got %q", cfg.Transcription.Bucket)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"backend", func(c *config.Config) { c.Transcription.Backend = "azure" }, "transcription.backend"},
		{"language", func(c *config.Config) { c.Transcription.Language = "not a tag!" }, "transcription.language"},
		{"checkpoint range", func(c *config.Config) { c.Render.CompositionCheckpoint = 100 }, "render.composition_checkpoint"},
		{"checkpoint order", func(c *config.Config) { c.Render.BundleCheckpoint = 30 }, "non-decreasing"},
		{"codec", func(c *config.Config) { c.Render.Codec = "mpeg2" }, "render.codec"},
		{"overlap", func(c *config.Config) { c.Captions.OverlapPolicy = "ignore" }, "captions.overlap_policy"},
		{"progress backend", func(c *config.Config) { c.Progress.Backend = "etcd" }, "progress.backend"},
		{"redis addr", func(c *config.Config) { c.Progress.Backend = "redis"; c.Progress.RedisAddr = "" }, "redis_addr"},
		{"kafka topic", func(c *config.Config) { c.Notifications.KafkaBrokers = []string{"b:9092"} }, "kafka_topic"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"upload outside public", func(c *config.Config) { c.Paths.UploadDir = "/srv/elsewhere/uploads" }, "paths.upload_dir"},
		{"upload is public root", func(c *config.Config) { c.Paths.UploadDir = c.Paths.PublicDir }, "paths.upload_dir"},
		{"render outside public", func(c *config.Config) { c.Paths.RenderDir = "../renders" }, "paths.render_dir"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded map[string]any
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestEnsureDirectoriesCreatesLayout(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PublicDir = filepath.Join(base, "public")
	cfg.Paths.UploadDir = filepath.Join(base, "public", "uploads")
	cfg.Paths.RenderDir = filepath.Join(base, "public", "renders")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.UploadDir, cfg.Paths.RenderDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q, err=%v", dir, err)
		}
	}
}

func TestPublicURLPath(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PublicDir = filepath.Join(base, "public")

	got, err := cfg.PublicURLPath(filepath.Join(base, "public", "media", "in"))
	if err != nil || got != "/media/in" {
		t.Fatalf("PublicURLPath = %q, %v; want /media/in", got, err)
	}
	if _, err := cfg.PublicURLPath(filepath.Join(base, "other")); err == nil {
		t.Fatal("expected error for a directory outside public_dir")
	}

	cfg.Paths.UploadDir = filepath.Join(base, "public", "media", "in")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("nested upload dir should validate: %v", err)
	}
}
