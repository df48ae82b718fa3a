package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"captioner/internal/bootstrap"
	"captioner/internal/config"
	"captioner/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) logLevel() string {
	if c.logLevelFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.logLevelFlag)
}

// logger writes to stderr so stdout stays machine readable.
func (c *commandContext) logger(cfg *config.Config) (*slog.Logger, error) {
	level := cfg.Logging.Level
	if override := c.logLevel(); override != "" {
		level = override
	}
	return logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr"},
		Color:       true,
	})
}

// withServices builds the pipeline for one command and releases it afterwards.
func (c *commandContext) withServices(ctx context.Context, fn func(*bootstrap.Services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	services, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer services.Close()
	return fn(services)
}

// apiBaseURL resolves the daemon URL from api_bind, mapping wildcard hosts to
// loopback.
func (c *commandContext) apiBaseURL(override string) (string, error) {
	if trimmed := strings.TrimRight(strings.TrimSpace(override), "/"); trimmed != "" {
		return trimmed, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		return "", fmt.Errorf("parse api_bind %q: %w", cfg.Paths.APIBind, err)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
