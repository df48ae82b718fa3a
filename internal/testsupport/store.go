package testsupport

import (
	"testing"

	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/progress"
)

// MustOpenProgressStore opens the configured progress store and registers cleanup.
func MustOpenProgressStore(t testing.TB, cfg *config.Config) progress.Store {
	t.Helper()

	store, err := progress.Open(cfg)
	if err != nil {
		t.Fatalf("progress.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTracker builds a tracker over the configured store with the config's retention.
func NewTracker(t testing.TB, cfg *config.Config, opts progress.Options) *progress.Tracker {
	t.Helper()

	if opts.Retention == 0 {
		opts.Retention = cfg.ProgressRetention()
	}
	return progress.NewTracker(MustOpenProgressStore(t, cfg), logging.NewNop(), opts)
}
