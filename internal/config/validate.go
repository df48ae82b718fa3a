package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
//
// Credentials for the transcription service are not required here: missing
// credentials are reported by the caption job right before it would need them,
// so the daemon can still serve renders and setup checks without them.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateProgress(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// validatePaths requires upload and render directories under public_dir:
// videos are addressed by public URL paths resolved against it. Empty values
// default to subdirectories of public_dir during normalization.
func (c *Config) validatePaths() error {
	for _, dir := range []struct{ key, value string }{
		{"paths.upload_dir", c.Paths.UploadDir},
		{"paths.render_dir", c.Paths.RenderDir},
	} {
		if strings.TrimSpace(dir.value) == "" {
			continue
		}
		if _, err := c.PublicURLPath(dir.value); err != nil {
			return fmt.Errorf("%s: %w", dir.key, err)
		}
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Backend {
	case "google", "whisperx":
	default:
		return fmt.Errorf("transcription.backend: unsupported value %q (want google or whisperx)", c.Transcription.Backend)
	}
	if _, err := language.Parse(c.Transcription.Language); err != nil {
		return fmt.Errorf("transcription.language: %q is not a BCP-47 tag: %w", c.Transcription.Language, err)
	}
	return nil
}

func (c *Config) validateRender() error {
	r := c.Render
	for name, value := range map[string]float64{
		"render.probe_checkpoint":       r.ProbeCheckpoint,
		"render.bundle_checkpoint":      r.BundleCheckpoint,
		"render.composition_checkpoint": r.CompositionCheckpoint,
	} {
		if math.IsNaN(value) || value < 0 || value >= 100 {
			return fmt.Errorf("%s must be within [0, 100)", name)
		}
	}
	if r.ProbeCheckpoint > r.BundleCheckpoint || r.BundleCheckpoint > r.CompositionCheckpoint {
		return errors.New("render checkpoints must be non-decreasing: probe <= bundle <= composition")
	}
	switch r.Codec {
	case "h264", "h265", "vp9":
	default:
		return fmt.Errorf("render.codec: unsupported value %q", r.Codec)
	}
	return nil
}

func (c *Config) validateCaptions() error {
	switch c.Captions.OverlapPolicy {
	case "reject", "merge":
		return nil
	default:
		return fmt.Errorf("captions.overlap_policy: unsupported value %q (want reject or merge)", c.Captions.OverlapPolicy)
	}
}

func (c *Config) validateProgress() error {
	switch c.Progress.Backend {
	case "file", "sqlite", "memory":
		return nil
	case "redis":
		if c.Progress.RedisAddr == "" {
			return errors.New("progress.redis_addr must be set when progress.backend is redis")
		}
		return nil
	default:
		return fmt.Errorf("progress.backend: unsupported value %q", c.Progress.Backend)
	}
}

func (c *Config) validateNotifications() error {
	if len(c.Notifications.KafkaBrokers) > 0 && c.Notifications.KafkaTopic == "" {
		return errors.New("notifications.kafka_topic must be set when kafka_brokers are configured")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
