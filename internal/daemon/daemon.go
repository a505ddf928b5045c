// Package daemon binds the engine, the inbox watcher, and the staging
// janitor into a single lifecycle with flock-based locking to prevent
// multiple instances from sharing a staging directory.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribed/internal/config"
	"scribed/internal/engine"
	"scribed/internal/fileutil"
	"scribed/internal/history"
	"scribed/internal/logging"
	"scribed/internal/watch"
)

// Daemon owns the background services of a scribed instance.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *history.Store
	engine *engine.Engine

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status reports daemon runtime information.
type Status struct {
	Running       bool
	ActiveJobs    int
	LockFilePath  string
	HistoryDBPath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *history.Store, eng *engine.Engine, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || eng == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, engine, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "scribed.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		engine:   eng,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the instance lock and launches the watcher and janitor.
// A daemon runs at most once: Stop shuts the engine down for good, so a
// stopped daemon cannot be started again.
func (d *Daemon) Start(ctx context.Context) error {
	if d.stopped.Load() {
		return errors.New("daemon already stopped")
	}
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribed instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if dir := strings.TrimSpace(d.cfg.Paths.InboxDir); dir != "" {
		watcher := watch.New(dir, d.engine, d.logger)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := watcher.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("inbox watcher stopped", logging.Error(err))
			}
		}()
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runJanitor(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("scribed daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts the services down and releases the lock. Jobs still in flight
// move to their error state through the engine's own shutdown.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.stopped.Store(true)

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.engine.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("scribed daemon stopped")
}

// Close stops the daemon and releases the history store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status() Status {
	return Status{
		Running:       d.running.Load(),
		ActiveJobs:    d.engine.ActiveJobs(),
		LockFilePath:  d.lockPath,
		HistoryDBPath: d.store.Path(),
	}
}

// runJanitor deletes stale staged uploads on a fixed interval. A cleanup
// pass runs immediately at startup so a crashed instance's leftovers do not
// wait a full interval.
func (d *Daemon) runJanitor(ctx context.Context) {
	interval := time.Duration(d.cfg.Janitor.IntervalHours) * time.Hour
	maxAge := time.Duration(d.cfg.Janitor.MaxUploadAgeHours) * time.Hour

	d.cleanupStaging(maxAge)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanupStaging(maxAge)
		}
	}
}

func (d *Daemon) cleanupStaging(maxAge time.Duration) {
	removed, err := fileutil.RemoveOlderThan(d.cfg.Paths.StagingDir, maxAge)
	if err != nil {
		d.logger.Warn("cleaning staging directory", logging.Error(err))
		return
	}
	if removed > 0 {
		d.logger.Info("removed stale uploads", logging.Int("count", removed))
	}
}
