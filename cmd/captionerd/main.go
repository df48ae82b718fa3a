// Command captionerd runs the captioner HTTP API as a standalone daemon.
package main

import (
	"context"
	"flag"
	"log"

	"captioner/internal/config"
	"captioner/internal/daemonrun"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	logLevel := flag.String("log-level", "", "Override the configured log level")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{LogLevel: *logLevel}); err != nil {
		log.Fatalf("captionerd: %v", err)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
