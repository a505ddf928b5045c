package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"scribed/internal/logging"
	"scribed/internal/provider"
)

// Task is one chunk awaiting transcription.
type Task struct {
	Index   int
	Total   int
	Request provider.Request
}

// Result is the terminal outcome of one task. Err is nil iff the chunk
// succeeded.
type Result struct {
	Index int
	Text  string
	Err   error
}

// Sink receives chunk status changes as they happen. The job tracker
// implements it to feed the progress log.
type Sink interface {
	ChunkStarted(index, total, attempt int)
	ChunkRetrying(index, total, attempt, budget int, wait time.Duration, err error)
	ChunkFailed(index, total, attempt int, err error)
	ChunkSucceeded(index, total int)
}

// nopSink discards all status changes.
type nopSink struct{}

func (nopSink) ChunkStarted(int, int, int) {}

func (nopSink) ChunkRetrying(int, int, int, int, time.Duration, error) {}

func (nopSink) ChunkFailed(int, int, int, error) {}

func (nopSink) ChunkSucceeded(int, int) {}

// Dispatcher runs tasks against one provider through its shared pool.
type Dispatcher struct {
	pool           *Pool
	transcriber    provider.Transcriber
	backoff        Backoff
	retryCeiling   int
	attemptTimeout time.Duration
	logger         *slog.Logger

	// sleep and rnd are swapped in tests to keep retries instantaneous and
	// deterministic.
	sleep func(ctx context.Context, d time.Duration) error
	rnd   func(n int64) int64
}

// New wires a dispatcher for one provider. retryCeiling is the maximum
// number of attempts per chunk, including the first. attemptTimeout bounds
// each provider call end to end; zero disables the bound. The deadline
// matters for backends that poll for an async result, where per-exchange
// HTTP timeouts never fire on a transcript stuck in processing.
func New(pool *Pool, tr provider.Transcriber, backoff Backoff, retryCeiling int, attemptTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if retryCeiling < 1 {
		retryCeiling = 1
	}
	return &Dispatcher{
		pool:           pool,
		transcriber:    tr,
		backoff:        backoff,
		retryCeiling:   retryCeiling,
		attemptTimeout: attemptTimeout,
		logger:         logging.NewComponentLogger(logger, "dispatch"),
		sleep:          sleepContext,
		rnd:            rand.Int63n,
	}
}

// Run transcribes every task and blocks until all of them are terminal.
// Results are ordered by task index. A fatal or exhausted chunk does not
// stop the others; the caller decides what a partial outcome means.
func (d *Dispatcher) Run(ctx context.Context, tasks []Task, sink Sink) []Result {
	if sink == nil {
		sink = nopSink{}
	}
	results := make([]Result, len(tasks))

	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(slot int, task Task) {
			defer wg.Done()
			text, err := d.runTask(ctx, task, sink)
			results[slot] = Result{Index: task.Index, Text: text, Err: err}
		}(i, task)
	}
	wg.Wait()

	return results
}

// runTask drives one chunk through its attempt loop. Each attempt holds a
// pool slot only for the duration of the provider call, so a chunk waiting
// out a backoff does not starve others.
func (d *Dispatcher) runTask(ctx context.Context, task Task, sink Sink) (string, error) {
	budget := d.retryCeiling

	for attempt := 1; ; attempt++ {
		if err := d.pool.Acquire(ctx); err != nil {
			sink.ChunkFailed(task.Index, task.Total, attempt, err)
			return "", err
		}
		sink.ChunkStarted(task.Index, task.Total, attempt)
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if d.attemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, d.attemptTimeout)
		}
		text, err := d.transcriber.Transcribe(attemptCtx, task.Request)
		cancel()
		d.pool.Release()

		if err == nil {
			sink.ChunkSucceeded(task.Index, task.Total)
			return text, nil
		}
		if ctx.Err() != nil {
			sink.ChunkFailed(task.Index, task.Total, attempt, ctx.Err())
			return "", ctx.Err()
		}

		kind := provider.KindOf(err)
		if kind == provider.KindFatal {
			d.logger.Error("chunk failed",
				logging.Int(logging.FieldChunk, task.Index),
				logging.Error(err))
			sink.ChunkFailed(task.Index, task.Total, attempt, err)
			return "", err
		}
		if kind == provider.KindUnknown {
			// Unclassified failures get half the budget of a known
			// transient one.
			if halved := (d.retryCeiling + 1) / 2; halved < budget {
				budget = halved
			}
		}
		if attempt >= budget {
			err = fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			d.logger.Error("chunk failed",
				logging.Int(logging.FieldChunk, task.Index),
				logging.Error(err))
			sink.ChunkFailed(task.Index, task.Total, attempt, err)
			return "", err
		}

		wait := d.backoff.Delay(attempt-1, d.rnd)
		d.logger.Warn("chunk retrying",
			logging.Int(logging.FieldChunk, task.Index),
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Error(err))
		sink.ChunkRetrying(task.Index, task.Total, attempt, budget, wait, err)
		if err := d.sleep(ctx, wait); err != nil {
			sink.ChunkFailed(task.Index, task.Total, attempt, err)
			return "", err
		}
	}
}

// Exhausted reports whether any result is a failure.
func Exhausted(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("chunk %d: %w", r.Index, r.Err))
		}
	}
	return errors.Join(errs...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
