package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/services"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("render started", logging.String("style", "karaoke"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "render started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
	if strings.Contains(string(content), "\x1b[") {
		t.Fatalf("log file must not contain colour codes, got %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsSubjectAndFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "3f2a9c1e-1111-2222-3333-444455556666")
	ctx = services.WithStage(ctx, "rendering")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "orchestrator")).
		Info("progress", logging.Float64("percent", 60))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	text := string(content)
	for _, fragment := range []string{"INFO [orchestrator]", "Job 3f2a9c1e (rendering)", "- progress", "    - percent: 60"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q in %q", fragment, text)
		}
	}
}

func TestJSONLoggerIncludesContextFields(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithJobID(context.Background(), "job-1")
	ctx = services.WithRequestID(ctx, "req-9")
	logging.WithContext(ctx, logger).Warn("slot write failed", logging.Error(os.ErrPermission), logging.Duration("elapsed", 1500*time.Millisecond))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json log: %v (%q)", err, content)
	}
	if entry["level"] != "warn" || entry["msg"] != "slot write failed" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry[logging.FieldJobID] != "job-1" || entry[logging.FieldCorrelationID] != "req-9" {
		t.Fatalf("expected context fields, got %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", entry)
	}
	if entry["elapsed"] != "1.5s" {
		t.Fatalf("expected duration rendered as 1.5s, got %v", entry["elapsed"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "publish skipped", "publish_failed", logging.String(logging.FieldImpact, "output kept local"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if entry[logging.FieldEventType] != "publish_failed" {
		t.Fatalf("expected event type, got %v", entry)
	}
	if entry[logging.FieldImpact] != "output kept local" {
		t.Fatalf("expected caller impact preserved, got %v", entry)
	}
	if entry[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", entry)
	}
}
