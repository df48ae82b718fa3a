package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"captioner/internal/bootstrap"
	"captioner/internal/config"
	"captioner/internal/daemon"
	"captioner/internal/logging"
)

// PIDFileName is written under the log directory while the daemon runs.
const PIDFileName = "captioner.pid"

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides the configured level when set.
	LogLevel    string
	Development bool
	// Started, when set, receives the bound API address once serving.
	Started func(addr string)
}

// Run starts the captioner daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		Color:       true,
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	services, err := bootstrap.Build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("build services failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "bootstrap_failed"),
			logging.String(logging.FieldErrorHint, "check progress store and transcription settings"),
		)
		return err
	}
	defer services.Close()

	d, err := daemon.New(cfg, services.Router(), services.Tracker, services.Notifier, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other daemon holds the lock"),
			logging.String(logging.FieldImpact, "api unavailable"),
		)
		return err
	}
	if opts.Started != nil {
		opts.Started(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("captioner daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := cfg.FFmpegBinary()
	ffprobe := cfg.FFprobeBinary()
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("transcription_backend", cfg.Transcription.Backend),
		logging.Bool("project_id_present", strings.TrimSpace(cfg.Transcription.ProjectID) != ""),
		logging.Bool("bucket_present", strings.TrimSpace(cfg.Transcription.Bucket) != ""),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.String("progress_backend", cfg.Progress.Backend),
		logging.Bool("publish_enabled", strings.TrimSpace(cfg.Publish.S3Bucket) != ""),
		logging.Bool("api_token_set", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
