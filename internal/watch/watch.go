// Package watch ingests media dropped into an inbox directory. Files are
// submitted once their size stops changing, so half-copied uploads are never
// picked up.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"scribed/internal/engine"
	"scribed/internal/fileutil"
	"scribed/internal/logging"
)

// Submitter accepts transcription jobs. The engine implements it.
type Submitter interface {
	SubmitJob(ctx context.Context, req engine.Request) (uuid.UUID, error)
}

// pending tracks a file waiting to stabilize.
type pending struct {
	size     int64
	lastSeen time.Time
}

// Watcher monitors one inbox directory and submits stable media files.
type Watcher struct {
	dir       string
	submitter Submitter
	logger    *slog.Logger

	// settle is how long a file's size must hold steady before submission;
	// tick is the scan interval. Both shrink in tests.
	settle time.Duration
	tick   time.Duration
}

// New builds a watcher over the inbox directory.
func New(dir string, submitter Submitter, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:       dir,
		submitter: submitter,
		logger:    logging.NewComponentLogger(logger, "watch"),
		settle:    2 * time.Second,
		tick:      500 * time.Millisecond,
	}
}

// Run watches until the context ends. Files already sitting in the inbox at
// startup are picked up too.
func (w *Watcher) Run(ctx context.Context) error {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer notifier.Close()

	if err := notifier.Add(w.dir); err != nil {
		return fmt.Errorf("watch %q: %w", w.dir, err)
	}

	tracked := make(map[string]*pending)
	w.scanExisting(tracked)

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-notifier.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.track(tracked, event.Name)
		case err, ok := <-notifier.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", logging.Error(err))
		case <-ticker.C:
			w.sweep(ctx, tracked)
		}
	}
}

func (w *Watcher) scanExisting(tracked map[string]*pending) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("scanning inbox", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.track(tracked, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) track(tracked map[string]*pending, path string) {
	if !fileutil.AllowedExtension(path) {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	entry, ok := tracked[path]
	if !ok {
		entry = &pending{}
		tracked[path] = entry
	}
	entry.size = info.Size()
	entry.lastSeen = time.Now()
}

// sweep submits every tracked file whose size has held steady past the
// settle window. Submissions rejected for capacity stay tracked and are
// retried on a later sweep.
func (w *Watcher) sweep(ctx context.Context, tracked map[string]*pending) {
	now := time.Now()
	for path, entry := range tracked {
		info, err := os.Stat(path)
		if err != nil {
			delete(tracked, path)
			continue
		}
		if info.Size() != entry.size {
			entry.size = info.Size()
			entry.lastSeen = now
			continue
		}
		if now.Sub(entry.lastSeen) < w.settle {
			continue
		}

		id, err := w.submitter.SubmitJob(ctx, engine.Request{SourcePath: path})
		if err != nil {
			if errors.Is(err, engine.ErrBusy) {
				continue
			}
			w.logger.Error("submitting inbox file",
				logging.String("path", path),
				logging.Error(err))
			delete(tracked, path)
			continue
		}
		w.logger.Info("inbox file submitted",
			logging.String("path", path),
			logging.String(logging.FieldJobID, id.String()))
		if err := os.Remove(path); err != nil {
			w.logger.Warn("removing inbox file", logging.Error(err))
		}
		delete(tracked, path)
	}
}
