package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"captioner/internal/config"
	"captioner/internal/deps"
	"captioner/internal/logging"
	"captioner/internal/notifications"
	"captioner/internal/preflight"
)

// Sweeper evicts expired progress entries until ctx is done.
type Sweeper interface {
	Run(ctx context.Context, interval time.Duration)
}

// Daemon owns the API server and background maintenance and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	sweeper  Sweeper
	notifier notifications.Service
	server   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	APIAddress      string
	LockFilePath    string
	ProgressBackend string
	Dependencies    []deps.Status
}

// New constructs a daemon serving handler on cfg.Paths.APIBind.
func New(cfg *config.Config, handler http.Handler, sweeper Sweeper, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || handler == nil {
		return nil, errors.New("daemon requires config and api handler")
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		sweeper:  sweeper,
		notifier: notifier,
		server:   newAPIServer(cfg.Paths.APIBind, authMiddleware(cfg.Paths.APIToken, handler), logger),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, starts the API server, and launches the
// progress sweeper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another captioner daemon instance is already running")
	}

	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "jobs depending on this check will fail"),
			logging.String(logging.FieldErrorHint, "run captioner check-setup"),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	if d.sweeper != nil {
		interval := d.cfg.ProgressRetention()
		if interval < time.Second {
			interval = time.Second
		}
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.sweeper.Run(runCtx, interval)
		}()
	}

	d.running.Store(true)
	d.logger.Info("captioner daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.server.addr()),
	)
	return nil
}

// Stop shuts the API server down, waits for background work, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("captioner daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// TestNotification publishes a test event through the configured transports.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if len(preflight.NotificationTargets(d.cfg)) == 0 {
		return false, "no notification transport configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, notifications.Payload{"message": "captioner test notification"}); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	return Status{
		Running:         d.running.Load(),
		APIAddress:      d.server.addr(),
		LockFilePath:    d.lockPath,
		ProgressBackend: d.cfg.Progress.Backend,
		Dependencies:    preflight.CheckSystemDeps(d.cfg),
	}
}
