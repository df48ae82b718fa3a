package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeTranscription(); err != nil {
		return err
	}
	c.normalizeRender()
	if err := c.normalizeProgress(); err != nil {
		return err
	}
	c.normalizePublish()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.PublicDir) == "" {
		c.Paths.PublicDir = defaultPublicDir
	}
	if c.Paths.PublicDir, err = expandPath(c.Paths.PublicDir); err != nil {
		return fmt.Errorf("paths.public_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadDir) == "" {
		c.Paths.UploadDir = filepath.Join(c.Paths.PublicDir, defaultUploadSubdir)
	}
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.RenderDir) == "" {
		c.Paths.RenderDir = filepath.Join(c.Paths.PublicDir, defaultRenderSubdir)
	}
	if c.Paths.RenderDir, err = expandPath(c.Paths.RenderDir); err != nil {
		return fmt.Errorf("paths.render_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = os.Getenv("CAPTIONER_API_TOKEN")
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	return nil
}

func (c *Config) normalizeTranscription() error {
	t := &c.Transcription
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	if t.Backend == "" {
		t.Backend = defaultTranscriptionBackend
	}
	t.Language = strings.TrimSpace(t.Language)
	if t.Language == "" {
		t.Language = defaultTranscriptionLanguage
	}
	if t.ProjectID == "" {
		if value, ok := os.LookupEnv("GOOGLE_CLOUD_PROJECT_ID"); ok {
			t.ProjectID = value
		}
	}
	t.ProjectID = strings.TrimSpace(t.ProjectID)
	if t.Bucket == "" {
		if value, ok := os.LookupEnv("GOOGLE_CLOUD_BUCKET_NAME"); ok {
			t.Bucket = value
		}
	}
	t.Bucket = strings.TrimSpace(t.Bucket)
	if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok && strings.TrimSpace(value) != "" && t.CredentialsFile == defaultCredentialsFile {
		t.CredentialsFile = value
	}
	t.CredentialsFile = strings.TrimSpace(t.CredentialsFile)
	if t.CredentialsFile != "" {
		expanded, err := expandPath(t.CredentialsFile)
		if err != nil {
			return fmt.Errorf("transcription.credentials_file: %w", err)
		}
		t.CredentialsFile = expanded
	}
	if t.PollIntervalSeconds <= 0 {
		t.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if t.TimeoutSeconds < 0 {
		t.TimeoutSeconds = 0
	}
	if strings.TrimSpace(t.WhisperXModel) == "" {
		t.WhisperXModel = defaultWhisperXModel
	}
	return nil
}

func (c *Config) normalizeRender() {
	r := &c.Render
	if r.FPS <= 0 {
		r.FPS = defaultFPS
	}
	if r.FallbackDurationSeconds <= 0 {
		r.FallbackDurationSeconds = defaultFallbackDurationSeconds
	}
	r.Codec = strings.ToLower(strings.TrimSpace(r.Codec))
	if r.Codec == "" {
		r.Codec = defaultCodec
	}
	r.CompositionID = strings.TrimSpace(r.CompositionID)
	if r.CompositionID == "" {
		r.CompositionID = defaultCompositionID
	}
	if r.Width <= 0 {
		r.Width = defaultWidth
	}
	if r.Height <= 0 {
		r.Height = defaultHeight
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = defaultMaxConcurrentRenders
	}
	if r.StageTimeoutSeconds < 0 {
		r.StageTimeoutSeconds = 0
	}
	c.Captions.OverlapPolicy = strings.ToLower(strings.TrimSpace(c.Captions.OverlapPolicy))
	if c.Captions.OverlapPolicy == "" {
		c.Captions.OverlapPolicy = defaultOverlapPolicy
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultUploadMaxBytes
	}
}

func (c *Config) normalizeProgress() error {
	p := &c.Progress
	p.Backend = strings.ToLower(strings.TrimSpace(p.Backend))
	if p.Backend == "" {
		p.Backend = defaultProgressBackend
	}
	if p.RetentionSeconds < 0 {
		p.RetentionSeconds = 0
	}
	p.FileName = strings.TrimSpace(p.FileName)
	if p.FileName == "" {
		p.FileName = defaultProgressFileName
	}
	if strings.TrimSpace(p.SQLitePath) == "" {
		p.SQLitePath = filepath.Join(c.Paths.StateDir, defaultProgressSQLiteName)
	}
	var err error
	if p.SQLitePath, err = expandPath(p.SQLitePath); err != nil {
		return fmt.Errorf("progress.sqlite_path: %w", err)
	}
	if p.RedisAddr == "" {
		if value, ok := os.LookupEnv("REDIS_ADDR"); ok {
			p.RedisAddr = value
		}
	}
	p.RedisAddr = strings.TrimSpace(p.RedisAddr)
	if p.RedisPassword == "" {
		if value, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
			p.RedisPassword = value
		}
	}
	if strings.TrimSpace(p.RedisKeyPrefix) == "" {
		p.RedisKeyPrefix = defaultRedisKeyPrefix
	}
	return nil
}

func (c *Config) normalizePublish() {
	p := &c.Publish
	p.S3Bucket = strings.TrimSpace(p.S3Bucket)
	p.S3Region = strings.TrimSpace(p.S3Region)
	p.S3Profile = strings.TrimSpace(p.S3Profile)
	p.S3Prefix = strings.TrimLeft(strings.TrimSpace(p.S3Prefix), "/")
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	if n.RequestTimeout <= 0 {
		n.RequestTimeout = defaultNotifyTimeout
	}
	brokers := make([]string, 0, len(n.KafkaBrokers))
	for _, broker := range n.KafkaBrokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	n.KafkaBrokers = brokers
	n.KafkaTopic = strings.TrimSpace(n.KafkaTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
