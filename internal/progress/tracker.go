package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"captioner/internal/logging"
)

// Options configures a Tracker.
type Options struct {
	// Retention is how long a completed job stays readable.
	Retention time.Duration
	// Now overrides the clock (for testing).
	Now func() time.Time
}

// Tracker is the progress registry shared by the render orchestrator and
// pollers. It is safe for concurrent use.
type Tracker struct {
	store     Store
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	latest  string
	last    map[string]float64
	started map[string]int64
}

// NewTracker wraps store with the registry rules.
func NewTracker(store Store, logger *slog.Logger, opts Options) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		store:     store,
		logger:    logging.NewComponentLogger(logger, "progress"),
		retention: opts.Retention,
		now:       now,
		last:      make(map[string]float64),
		started:   make(map[string]int64),
	}
}

// Retention reports how long completed jobs remain readable.
func (t *Tracker) Retention() time.Duration {
	return t.retention
}

// Reset clears the job's slot and marks it as the most recent job.
func (t *Tracker) Reset(ctx context.Context, jobID string) {
	t.mu.Lock()
	t.latest = jobID
	delete(t.last, jobID)
	t.started[jobID] = t.now().UnixMilli()
	t.mu.Unlock()

	reset := t.store.Delete
	if r, ok := t.store.(resetter); ok {
		reset = r.Reset
	}
	if err := reset(ctx, jobID); err != nil {
		t.warn(ctx, "progress reset failed", jobID, err)
	}
}

// Set records value for the job. Values are clamped to [0, 100] and never
// move backward within a job.
func (t *Tracker) Set(ctx context.Context, jobID string, value float64) {
	value = Clamp(value)

	t.mu.Lock()
	if prev, ok := t.last[jobID]; ok && value < prev {
		value = prev
	}
	t.last[jobID] = value
	startedAt, ok := t.started[jobID]
	if !ok {
		startedAt = t.now().UnixMilli()
		t.started[jobID] = startedAt
	}
	if t.latest == "" {
		t.latest = jobID
	}
	t.mu.Unlock()

	state := State{
		JobID:     jobID,
		Progress:  value,
		Timestamp: t.now().UnixMilli(),
		Status:    StatusRunning,
		StartedAt: startedAt,
	}
	if err := t.store.Save(ctx, state); err != nil {
		t.warn(ctx, "progress write failed", jobID, err)
	}
}

// Complete records 100 and starts the retention window.
func (t *Tracker) Complete(ctx context.Context, jobID string) {
	now := t.now().UnixMilli()
	t.mu.Lock()
	startedAt := t.started[jobID]
	delete(t.last, jobID)
	delete(t.started, jobID)
	t.mu.Unlock()

	state := State{
		JobID:      jobID,
		Progress:   100,
		Timestamp:  now,
		Status:     StatusComplete,
		StartedAt:  startedAt,
		FinishedAt: now,
	}
	if err := t.store.Save(ctx, state); err != nil {
		t.warn(ctx, "progress completion write failed", jobID, err)
	}
}

// Fail clears the job's slot immediately.
func (t *Tracker) Fail(ctx context.Context, jobID string) {
	t.mu.Lock()
	delete(t.last, jobID)
	delete(t.started, jobID)
	t.mu.Unlock()

	if err := t.store.Delete(ctx, jobID); err != nil {
		t.warn(ctx, "progress clear failed", jobID, err)
	}
}

// Read returns the job's last value, or 0 when absent, expired, or
// unreadable. An empty jobID reads the most recently started job.
func (t *Tracker) Read(ctx context.Context, jobID string) float64 {
	state, ok := t.Snapshot(ctx, jobID)
	if !ok {
		return 0
	}
	return Clamp(state.Progress)
}

// Snapshot returns the full state for the job. Expired completions are
// evicted on access.
func (t *Tracker) Snapshot(ctx context.Context, jobID string) (State, bool) {
	jobID = t.resolve(ctx, jobID)
	if jobID == "" {
		return State{}, false
	}
	state, err := t.store.Load(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			t.warn(ctx, "progress read failed", jobID, err)
		}
		return State{}, false
	}
	if t.expired(state) {
		if err := t.store.Delete(ctx, jobID); err != nil {
			t.warn(ctx, "progress eviction failed", jobID, err)
		}
		return State{}, false
	}
	return state, true
}

// Sweep evicts completed jobs past retention and returns how many it removed.
func (t *Tracker) Sweep(ctx context.Context) int {
	states, err := t.store.List(ctx)
	if err != nil {
		t.warn(ctx, "progress sweep failed", "", err)
		return 0
	}
	removed := 0
	for _, state := range states {
		if !t.expired(state) {
			continue
		}
		if err := t.store.Delete(ctx, state.JobID); err != nil {
			t.warn(ctx, "progress eviction failed", state.JobID, err)
			continue
		}
		removed++
	}
	return removed
}

// Run sweeps on every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(ctx); n > 0 {
				t.logger.Debug("evicted finished jobs", logging.Int("count", n))
			}
		}
	}
}

// Close releases the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}

func (t *Tracker) expired(state State) bool {
	if state.Status != StatusComplete || state.FinishedAt == 0 {
		return false
	}
	return t.now().UnixMilli()-state.FinishedAt >= t.retention.Milliseconds()
}

// resolve picks the job an empty id refers to: the latest one this process
// started, else the most recently started job in the store.
func (t *Tracker) resolve(ctx context.Context, jobID string) string {
	if jobID != "" {
		return jobID
	}
	t.mu.Lock()
	latest := t.latest
	t.mu.Unlock()
	if latest != "" {
		return latest
	}
	states, err := t.store.List(ctx)
	if err != nil {
		t.warn(ctx, "progress read failed", "", err)
		return ""
	}
	var newest State
	for _, state := range states {
		if state.StartedAt > newest.StartedAt || (state.StartedAt == newest.StartedAt && state.Timestamp > newest.Timestamp) {
			newest = state
		}
	}
	return newest.JobID
}

func (t *Tracker) warn(ctx context.Context, msg, jobID string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, t.logger), msg, "progress_store",
		logging.String(logging.FieldJobID, jobID),
		logging.Error(err),
		logging.String(logging.FieldImpact, "pollers may see stale or zero progress"),
		logging.String(logging.FieldErrorHint, "check the progress store backend"),
	)
}
