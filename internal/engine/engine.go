// Package engine wires the transcription pipeline behind a small facade:
// submit a media file, poll its progress, collect the transcript.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribed/internal/aggregate"
	"scribed/internal/config"
	"scribed/internal/dispatch"
	"scribed/internal/fileutil"
	"scribed/internal/history"
	"scribed/internal/jobs"
	"scribed/internal/logging"
	"scribed/internal/media"
	"scribed/internal/provider"
	"scribed/internal/segment"
)

// ErrValidation marks a request rejected before any work started.
var ErrValidation = errors.New("validation error")

// ErrBusy marks a submission rejected because the active-job cap is reached.
var ErrBusy = errors.New("too many active jobs")

// Request describes one file to transcribe.
type Request struct {
	// SourcePath is the file to transcribe. It is copied into the staging
	// directory before SubmitJob returns, so the caller may remove it.
	SourcePath string
	// Filename overrides the display name; defaults to the source basename.
	Filename string
	// Provider selects the backend; empty means the configured default.
	Provider string
	// Language is a BCP 47 hint or "auto"; empty means the configured
	// default.
	Language string
	// Hint is free-form context passed to the backend.
	Hint string
}

// Engine owns the job registry, the per-provider pools, and the pipeline
// goroutines. One engine runs per process; its pools enforce the
// process-wide provider concurrency ceilings.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *jobs.Registry
	store    *history.Store

	mu    sync.Mutex
	pools map[provider.Choice]*dispatch.Pool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// normalize and newTranscriber are replaced in tests.
	normalize      func(ctx context.Context, path string) (*media.Audio, error)
	newTranscriber func(choice provider.Choice, pcfg config.Provider) (provider.Transcriber, error)
}

// New builds an engine. The history store may be nil, in which case
// finished jobs are only held in memory until eviction.
func New(cfg *config.Config, store *history.Store, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	normalizer := media.Normalizer{FFmpeg: cfg.FFmpegBinary(), FFprobe: cfg.FFprobeBinary()}
	e := &Engine{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "engine"),
		registry:  jobs.NewRegistry(),
		store:     store,
		pools:     make(map[provider.Choice]*dispatch.Pool),
		ctx:       ctx,
		cancel:    cancel,
		normalize: normalizer.Normalize,
	}
	e.newTranscriber = func(choice provider.Choice, pcfg config.Provider) (provider.Transcriber, error) {
		return provider.New(choice, pcfg, logger)
	}
	return e
}

// Stop cancels every running pipeline and waits for them to settle.
// In-flight jobs move to Error.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()
}

// SubmitJob validates the request, stages the upload, and starts the
// pipeline. The returned ID resolves through GetProgress immediately.
func (e *Engine) SubmitJob(ctx context.Context, req Request) (uuid.UUID, error) {
	filename := req.Filename
	if filename == "" {
		filename = filepath.Base(req.SourcePath)
	}
	if !fileutil.AllowedExtension(filename) {
		return uuid.Nil, fmt.Errorf("%w: unsupported file type %q (allowed: %s)",
			ErrValidation, filepath.Ext(filename), strings.Join(fileutil.AllowedExtensions(), ", "))
	}

	providerName := req.Provider
	if providerName == "" {
		providerName = e.cfg.Engine.DefaultProvider
	}
	choice, err := provider.ParseChoice(providerName)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	pcfg, ok := e.cfg.ProviderFor(string(choice))
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: provider %s not configured", ErrValidation, choice)
	}
	if err := provider.ValidateHint(req.Hint, pcfg.MaxHintLength); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	languageHint := req.Language
	if languageHint == "" {
		languageHint = e.cfg.Engine.DefaultLanguage
	}
	language, err := provider.NormalizeLanguage(languageHint)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	e.registry.Sweep(time.Duration(e.cfg.Engine.JobRetentionMinutes) * time.Minute)
	if e.registry.ActiveCount() >= e.cfg.Engine.MaxActiveJobs {
		return uuid.Nil, fmt.Errorf("%w: limit is %d", ErrBusy, e.cfg.Engine.MaxActiveJobs)
	}

	id := uuid.New()
	staged, err := fileutil.Stage(e.cfg.Paths.StagingDir, id, req.SourcePath)
	if err != nil {
		return uuid.Nil, fmt.Errorf("staging upload: %w", err)
	}

	tracker := jobs.NewTracker(id, filename, string(choice), language)
	e.registry.Add(tracker)

	e.logger.Info("job submitted",
		logging.String(logging.FieldJobID, id.String()),
		logging.String("filename", filename),
		logging.String(logging.FieldProvider, string(choice)))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runPipeline(tracker, staged, choice, pcfg, language, req.Hint)
	}()

	return id, nil
}

// GetProgress returns a snapshot of the job's state, progress log, and
// outcome. Unknown and evicted IDs return jobs.ErrNotFound.
func (e *Engine) GetProgress(id uuid.UUID) (jobs.Snapshot, error) {
	tracker, err := e.registry.Get(id)
	if err != nil {
		return jobs.Snapshot{}, err
	}
	return tracker.Snapshot(), nil
}

// ActiveJobs reports how many jobs are currently running.
func (e *Engine) ActiveJobs() int {
	return e.registry.ActiveCount()
}

// poolFor returns the process-wide pool for a provider, creating it on
// first use.
func (e *Engine) poolFor(choice provider.Choice, pcfg config.Provider) *dispatch.Pool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pool, ok := e.pools[choice]
	if !ok {
		pool = dispatch.NewPool(pcfg.Concurrency)
		e.pools[choice] = pool
	}
	return pool
}

// runPipeline drives one job from staged file to terminal state. Every
// failure path lands in the tracker and the history store; the staged file
// is always cleaned up.
func (e *Engine) runPipeline(tracker *jobs.Tracker, staged string, choice provider.Choice, pcfg config.Provider, language, hint string) {
	ctx := logging.WithJobID(e.ctx, tracker.ID().String())
	ctx = logging.WithProvider(ctx, string(choice))
	logger := logging.WithContext(ctx, e.logger)
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			logger.Warn("removing staged upload", logging.Error(err))
		}
	}()

	// fail reads the stage name back out of the phase's context, so the
	// error message and the log line always agree on where the job died.
	fail := func(ctx context.Context, err error) {
		stage, _ := logging.StageFromContext(ctx)
		message := fmt.Sprintf("%s: %v", stage, err)
		logging.WithContext(ctx, e.logger).Error("job failed", logging.Error(err))
		if err := tracker.Fail(message); err != nil {
			logger.Error("recording failure", logging.Error(err))
		}
		e.record(tracker)
	}

	if err := ctx.Err(); err != nil {
		fail(logging.WithStage(ctx, "startup"), errors.New("shutting down"))
		return
	}

	if err := tracker.Transition(jobs.StateExtracting); err != nil {
		logger.Error("state transition", logging.Error(err))
		return
	}
	extractCtx := logging.WithStage(ctx, "extracting audio")
	audio, err := e.normalize(extractCtx, staged)
	if err != nil {
		fail(extractCtx, err)
		return
	}

	if err := tracker.Transition(jobs.StateSegmenting); err != nil {
		logger.Error("state transition", logging.Error(err))
		return
	}
	opts := segment.OptionsFromConfig(e.cfg.Segmenter)
	plan, err := segment.Plan(audio, opts)
	if err != nil {
		fail(logging.WithStage(ctx, "segmenting audio"), err)
		return
	}

	if err := tracker.Transition(jobs.StateTranscribing); err != nil {
		logger.Error("state transition", logging.Error(err))
		return
	}
	tracker.SetChunkCount(len(plan))

	tasks := make([]dispatch.Task, len(plan))
	for i, chunk := range plan {
		tasks[i] = dispatch.Task{
			Index: chunk.Index,
			Total: len(plan),
			Request: provider.Request{
				Audio:    segment.Cut(audio, chunk, opts.BoundaryGuard),
				MIMEType: "audio/wav",
				Language: language,
				Hint:     hint,
			},
		}
	}

	transcriber, err := e.newTranscriber(choice, pcfg)
	if err != nil {
		fail(logging.WithStage(ctx, "initializing provider"), err)
		return
	}
	transcribeCtx := logging.WithStage(ctx, "transcribing")
	dispatcher := dispatch.New(e.poolFor(choice, pcfg), transcriber,
		dispatch.BackoffFromConfig(pcfg), pcfg.RetryCeiling,
		time.Duration(pcfg.RequestTimeoutSeconds)*time.Second,
		logging.WithContext(transcribeCtx, e.logger))
	results := dispatcher.Run(transcribeCtx, tasks, tracker)

	// All-or-nothing: one failed chunk fails the job, and no partial
	// transcript is exposed.
	if err := dispatch.Exhausted(results); err != nil {
		if ctx.Err() != nil {
			fail(transcribeCtx, errors.New("shutting down"))
			return
		}
		fail(transcribeCtx, err)
		return
	}

	if err := tracker.Transition(jobs.StateAggregating); err != nil {
		logger.Error("state transition", logging.Error(err))
		return
	}
	texts := make([]string, len(results))
	for _, r := range results {
		texts[r.Index] = r.Text
	}
	transcript := aggregate.Join(texts, opts.BoundaryGuard > 0)

	if err := tracker.Finish(transcript); err != nil {
		logger.Error("recording completion", logging.Error(err))
		return
	}
	logger.Info("job finished", logging.Int("chunks", len(plan)))
	e.record(tracker)
}

// record persists a terminal job to the history store.
func (e *Engine) record(tracker *jobs.Tracker) {
	if e.store == nil {
		return
	}
	snap := tracker.Snapshot()
	rec := history.Record{
		ID:         snap.ID.String(),
		Filename:   snap.Filename,
		Language:   snap.Language,
		Provider:   snap.Provider,
		Transcript: snap.FinalTranscript,
		Error:      snap.ErrorMessage,
		CreatedAt:  snap.FinishedAt,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.store.Insert(ctx, rec); err != nil {
		e.logger.Error("persisting job record",
			logging.String(logging.FieldJobID, rec.ID),
			logging.Error(err))
	}
}
