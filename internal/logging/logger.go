package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"captioner/internal/config"
)

// LogFileName is the file written under the configured log directory.
const LogFileName = "captioner.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// Color enables ANSI level colours on console output written to a terminal.
	Color       bool
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	levelVar := new(slog.LevelVar)
	levelVar.Set(parseLevel(opts.Level))
	addSource := opts.Development || levelVar.Level() <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}

	handlers := make([]slog.Handler, 0, len(paths))
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		writer, terminal, err := openWriter(trimmed)
		if err != nil {
			return nil, err
		}
		switch format {
		case "json":
			handlers = append(handlers, newJSONHandler(writer, levelVar, addSource))
		default:
			handlers = append(handlers, newPrettyHandler(writer, levelVar, addSource, opts.Color && terminal))
		}
	}
	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates a logger using application config defaults. Console
// output goes to stdout; a copy is appended to the log file under LogDir.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", OutputPaths: []string{"stdout"}})
	}

	outputPaths := []string{"stdout"}
	if cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, filepath.Join(cfg.Paths.LogDir, LogFileName))
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
		Color:       true,
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriter(path string) (io.Writer, bool, error) {
	switch path {
	case "stdout":
		return os.Stdout, isTerminal(os.Stdout), nil
	case "stderr":
		return os.Stderr, isTerminal(os.Stderr), nil
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, false, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, false, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, false, nil
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
