package preflight

import (
	"context"
	"fmt"
	"time"

	"captioner/internal/config"
	"captioner/internal/progress"
)

// CheckProgressStore opens the configured progress backend and lists it once.
func CheckProgressStore(ctx context.Context, cfg *config.Config) Result {
	name := "Progress store"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	name = fmt.Sprintf("Progress store (%s)", cfg.Progress.Backend)

	store, err := progress.Open(cfg)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("open failed (%v)", err)}
	}
	defer store.Close()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	states, err := store.List(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("list failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable, %d tracked job(s)", len(states))}
}

// NotificationTargets summarizes configured event transports for status UIs.
func NotificationTargets(cfg *config.Config) []string {
	if cfg == nil {
		return nil
	}
	var targets []string
	if cfg.Notifications.NtfyTopic != "" {
		targets = append(targets, "ntfy "+cfg.Notifications.NtfyTopic)
	}
	if len(cfg.Notifications.KafkaBrokers) > 0 && cfg.Notifications.KafkaTopic != "" {
		targets = append(targets, "kafka "+cfg.Notifications.KafkaTopic)
	}
	return targets
}
